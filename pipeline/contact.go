package pipeline

// ContactCard is the VCF-derived view of one contact, before any message
// processing. It is the shape this package requires from the contacts
// collaborator; pipeline/vcf.go produces it from a real vCard stream.
type ContactCard struct {
	Name         string
	Organization string
	Title        string
	Birthday     string
	Note         string
	Phones       []PhoneNumber
	Emails       []EmailAddress
	URLs         []ProfileURL
	Addresses    []string
}

// PhoneNumber keeps both the canonical form used for matching and the
// original string from the card.
type PhoneNumber struct {
	Number   string `json:"number"`
	Original string `json:"original,omitempty"`
	Type     string `json:"type,omitempty"`
}

type EmailAddress struct {
	Address string `json:"address"`
	Type    string `json:"type,omitempty"`
}

type ProfileURL struct {
	URL      string `json:"url"`
	Platform string `json:"platform,omitempty"`
}

// CanonicalPhones returns the contact's phone numbers in canonical form,
// preserving card order.
func (c ContactCard) CanonicalPhones() []string {
	out := make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		out = append(out, p.Number)
	}
	return out
}

// EmailStrings returns just the address strings, preserving card order.
func (c ContactCard) EmailStrings() []string {
	out := make([]string, 0, len(c.Emails))
	for _, e := range c.Emails {
		out = append(out, e.Address)
	}
	return out
}

// ContactSummary is the compact contact block embedded in LLM-facing
// documents.
type ContactSummary struct {
	Name         string   `json:"name"`
	PhoneNumbers []string `json:"phone_numbers"`
	Emails       []string `json:"emails,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Title        string   `json:"title,omitempty"`
	Addresses    []string `json:"addresses,omitempty"`
}

// Summary builds the document-embedded contact block from a card.
func (c ContactCard) Summary() ContactSummary {
	return ContactSummary{
		Name:         c.Name,
		PhoneNumbers: c.CanonicalPhones(),
		Emails:       c.EmailStrings(),
		Organization: c.Organization,
		Title:        c.Title,
		Addresses:    append([]string(nil), c.Addresses...),
	}
}

// DocMessage is the externally visible message shape written into LLM
// documents: timestamp, me/contact, content. Internal fields (kind, read
// receipts, provenance) never leave the pipeline.
type DocMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
}

// ConversationDocument is the per-contact full LLM conversation artifact
// (conversation_llm.json).
type ConversationDocument struct {
	Contact  ContactSummary       `json:"contact"`
	Metadata ConversationInsights `json:"conversation_metadata"`
	Messages []DocMessage         `json:"messages"`
}

// ContactRecord is the enriched per-contact artifact (contact.json). Sections
// with no data are omitted rather than emitted empty.
type ContactRecord struct {
	Name         string                `json:"name"`
	Contact      *ContactDetails       `json:"contact_information,omitempty"`
	Personal     *PersonalInfo         `json:"personal_information,omitempty"`
	Professional *ProfessionalInfo     `json:"professional_information,omitempty"`
	Online       *OnlinePresence       `json:"online_presence,omitempty"`
	Additional   *AdditionalInfo       `json:"additional_information,omitempty"`
	Insights     *ConversationInsights `json:"conversation_insights,omitempty"`
	LastMessage  *LastMessageInfo      `json:"last_message_info,omitempty"`
	Artifacts    *ArtifactPaths        `json:"artifacts,omitempty"`
}

type ContactDetails struct {
	PhoneNumbers []PhoneNumber  `json:"phone_numbers,omitempty"`
	Emails       []EmailAddress `json:"emails,omitempty"`
}

type PersonalInfo struct {
	Birthday string `json:"birthday,omitempty"`
}

type ProfessionalInfo struct {
	Organization string `json:"organization,omitempty"`
	Title        string `json:"title,omitempty"`
}

type OnlinePresence struct {
	URLs []ProfileURL `json:"urls,omitempty"`
}

type AdditionalInfo struct {
	Note      string   `json:"note,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// ArtifactPaths references the on-disk documents generated for a contact,
// relative to the export root.
type ArtifactPaths struct {
	Conversation       string `json:"conversation,omitempty"`
	RecentInteractions string `json:"recent_interactions,omitempty"`
	PrivacyMapping     string `json:"privacy_mapping,omitempty"`
	PlainText          string `json:"plain_text,omitempty"`
}
