package pipeline

import (
	"strings"
	"testing"
)

func privacyDoc() ConversationDocument {
	return ConversationDocument{
		Contact: ContactSummary{
			Name:         "Alice Smith",
			PhoneNumbers: []string{"+15551234567"},
			Emails:       []string{"alice@example.com"},
			Organization: "Acme Corp",
			Addresses:    []string{"1 Main St, Springfield"},
		},
		Metadata: ConversationInsights{
			IdentityUsage:      map[string]int{"+15551234567": 10},
			MostActiveIdentity: "+15551234567",
		},
		Messages: []DocMessage{
			{Sender: SenderSelf, Content: "Hey Alice Smith, is +15551234567 still your number?"},
			{Sender: SenderContact, Content: "Yes, or email alice@example.com. alice works at Acme Corp"},
			{Sender: SenderSelf, Content: "cool, talk soon"},
		},
	}
}

func TestAnonymizeConversation(t *testing.T) {
	t.Parallel()

	doc := privacyDoc()
	a := NewAnonymizer(true)
	m, err := a.AnonymizeConversation(&doc, "Alice Smith")
	if err != nil {
		t.Fatalf("AnonymizeConversation: %v", err)
	}

	if m.PersonPlaceholder != "[[PERSON_1]]" {
		t.Fatalf("PersonPlaceholder=%q", m.PersonPlaceholder)
	}
	if doc.Contact.Name != "[[PERSON_1]]" {
		t.Fatalf("Contact.Name=%q", doc.Contact.Name)
	}
	if doc.Contact.PhoneNumbers[0] != "[[PHONE_1_1]]" {
		t.Fatalf("phone=%q", doc.Contact.PhoneNumbers[0])
	}
	if doc.Contact.Emails[0] != "[[EMAIL_1_1]]" {
		t.Fatalf("email=%q", doc.Contact.Emails[0])
	}
	if doc.Contact.Addresses != nil {
		t.Fatalf("addresses must be dropped, got %v", doc.Contact.Addresses)
	}
	if m.Addresses["[[ADDRESS_1]]"] != "1 Main St, Springfield" {
		t.Fatalf("address mapping=%v", m.Addresses)
	}
	if m.OriginalContact.Name != "Alice Smith" {
		t.Fatalf("OriginalContact=%+v", m.OriginalContact)
	}

	joined := doc.Messages[0].Content + " " + doc.Messages[1].Content
	for _, leaked := range []string{"Alice", "+15551234567", "alice@example.com", "Acme Corp"} {
		if strings.Contains(joined, leaked) {
			t.Fatalf("raw value %q leaked into %q", leaked, joined)
		}
	}
	if !strings.Contains(doc.Messages[0].Content, "[[PERSON_1]]") {
		t.Fatalf("msg0=%q", doc.Messages[0].Content)
	}
	if !strings.Contains(doc.Messages[0].Content, "[[PHONE_1_1]]") {
		t.Fatalf("msg0=%q", doc.Messages[0].Content)
	}
	if !strings.Contains(doc.Messages[1].Content, "[[EMAIL_1_1]]") {
		t.Fatalf("msg1=%q", doc.Messages[1].Content)
	}
	if doc.Messages[2].Content != "cool, talk soon" {
		t.Fatalf("msg2 must be untouched, got %q", doc.Messages[2].Content)
	}

	if doc.Metadata.MostActiveIdentity != "[[PHONE_1_1]]" {
		t.Fatalf("MostActiveIdentity=%q", doc.Metadata.MostActiveIdentity)
	}
	if doc.Metadata.IdentityUsage["[[PHONE_1_1]]"] != 10 {
		t.Fatalf("IdentityUsage=%v", doc.Metadata.IdentityUsage)
	}

	// Mapping restores the contact block values.
	if m.Phones["[[PHONE_1_1]]"] != "+15551234567" {
		t.Fatalf("Phones=%v", m.Phones)
	}
	if m.Emails["[[EMAIL_1_1]]"] != "alice@example.com" {
		t.Fatalf("Emails=%v", m.Emails)
	}
	if m.Organizations["[[ORGANIZATION_1]]"] != "Acme Corp" {
		t.Fatalf("Organizations=%v", m.Organizations)
	}
}

func TestAnonymizeConversation_IndependentContacts(t *testing.T) {
	t.Parallel()

	a := NewAnonymizer(true)

	docA := privacyDoc()
	mA, err := a.AnonymizeConversation(&docA, "Alice Smith")
	if err != nil {
		t.Fatalf("first contact: %v", err)
	}

	docB := ConversationDocument{
		Contact: ContactSummary{Name: "Bob Jones", PhoneNumbers: []string{"+15559876543"}},
		Messages: []DocMessage{
			{Sender: SenderSelf, Content: "Bob, new number?"},
		},
	}
	mB, err := a.AnonymizeConversation(&docB, "Bob Jones")
	if err != nil {
		t.Fatalf("second contact: %v", err)
	}

	if mA.PersonID == mB.PersonID {
		t.Fatalf("contacts share person ID %d", mA.PersonID)
	}
	if mB.PersonPlaceholder != "[[PERSON_2]]" {
		t.Fatalf("PersonPlaceholder=%q", mB.PersonPlaceholder)
	}
	if docB.Contact.PhoneNumbers[0] != "[[PHONE_2_1]]" {
		t.Fatalf("phone=%q, want person-2 scope", docB.Contact.PhoneNumbers[0])
	}
}

func TestAnonymizeConversation_Disabled(t *testing.T) {
	t.Parallel()

	doc := privacyDoc()
	a := NewAnonymizer(false)
	m, err := a.AnonymizeConversation(&doc, "Alice Smith")
	if err != nil {
		t.Fatalf("AnonymizeConversation: %v", err)
	}
	if m != nil {
		t.Fatalf("mapping=%+v, want nil when disabled", m)
	}
	if doc.Contact.Name != "Alice Smith" || doc.Messages[0].Content != privacyDoc().Messages[0].Content {
		t.Fatal("document modified while disabled")
	}
}

func TestAnonymizeConversation_CollisionRejected(t *testing.T) {
	t.Parallel()

	doc := ConversationDocument{
		Contact: ContactSummary{Name: "Alice Smith"},
		Messages: []DocMessage{
			{Sender: SenderSelf, Content: "weird, my export already says [[PERSON_7]]"},
		},
	}
	a := NewAnonymizer(true)
	if _, err := a.AnonymizeConversation(&doc, "Alice Smith"); err == nil {
		t.Fatal("want collision error for placeholder-shaped source content")
	}
}

func TestAnonymizeRecent_SharesMapping(t *testing.T) {
	t.Parallel()

	a := NewAnonymizer(true)
	convo := privacyDoc()
	m, err := a.AnonymizeConversation(&convo, "Alice Smith")
	if err != nil {
		t.Fatalf("AnonymizeConversation: %v", err)
	}

	recent := RecentInteractionsDocument{
		Contact: ContactSummary{
			Name:         "Alice Smith",
			PhoneNumbers: []string{"+15551234567"},
			Emails:       []string{"alice@example.com"},
			Organization: "Acme Corp",
		},
		Messages: []DocMessage{
			{Sender: SenderContact, Content: "reach Alice at +15551234567"},
		},
	}
	a.AnonymizeRecent(&recent, m)

	if recent.Contact.Name != "[[PERSON_1]]" {
		t.Fatalf("Name=%q", recent.Contact.Name)
	}
	if recent.Contact.PhoneNumbers[0] != "[[PHONE_1_1]]" {
		t.Fatalf("phone=%q, want placeholder shared with conversation", recent.Contact.PhoneNumbers[0])
	}
	if strings.Contains(recent.Messages[0].Content, "Alice") || strings.Contains(recent.Messages[0].Content, "+15551234567") {
		t.Fatalf("content leaked: %q", recent.Messages[0].Content)
	}
}
