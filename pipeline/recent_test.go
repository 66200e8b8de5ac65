package pipeline

import (
	"testing"
	"time"
)

func TestCleanMessageContentMinimal_KeepsShorts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"lol", "lol"},
		{"ok", "ok"},
		{"k", "k"},
		{"love it 😂", "love it 😂"},
		{"❤️", "❤️"},
		{"see you (Read by them after 1 minute)", "see you"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanMessageContentMinimal(tc.in); got != tc.want {
			t.Fatalf("CleanMessageContentMinimal(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func recentFixture(n int) []Message {
	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		sender := SenderSelf
		if i%2 == 1 {
			sender = SenderContact
		}
		msgs = append(msgs, Message{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Sender:    sender,
			Content:   "message number goes here",
		})
	}
	return msgs
}

func TestExtractRecentInteractions_Window(t *testing.T) {
	t.Parallel()

	recent, analysis := ExtractRecentInteractions(recentFixture(100), 75)
	if len(recent) != 75 {
		t.Fatalf("len=%d, want 75", len(recent))
	}
	if analysis.MessageCount != 75 {
		t.Fatalf("MessageCount=%d, want 75", analysis.MessageCount)
	}
	// 100 messages, last 75 kept: the window starts at index 25.
	wantFirst := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC).Add(25 * time.Hour)
	if !recent[0].Timestamp.Equal(wantFirst) {
		t.Fatalf("window start=%v, want %v", recent[0].Timestamp, wantFirst)
	}
	if analysis.TimespanHours != 74.0 {
		t.Fatalf("TimespanHours=%v, want 74", analysis.TimespanHours)
	}
}

func TestExtractRecentInteractions_WindowCutBeforeCleaning(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	msgs := []Message{
		{Timestamp: base, Sender: SenderSelf, Content: "older message"},
		{Timestamp: base.Add(time.Minute), Sender: SenderContact, Content: "keep one"},
		{Timestamp: base.Add(2 * time.Minute), Sender: SenderSelf, Content: "keep two"},
		{Timestamp: base.Add(3 * time.Minute), Sender: SenderContact, Content: "(Read by you after 1 minute)"},
	}
	recent, a := ExtractRecentInteractions(msgs, 3)

	// The receipt-only tail message cleans to empty and shrinks the window;
	// it must not pull the older message back in.
	if len(recent) != 2 {
		t.Fatalf("len=%d, want 2", len(recent))
	}
	if recent[0].Content != "keep one" || recent[1].Content != "keep two" {
		t.Fatalf("recent=%q / %q", recent[0].Content, recent[1].Content)
	}
	if a.MessageCount != 2 {
		t.Fatalf("MessageCount=%d, want 2", a.MessageCount)
	}
}

func TestExtractRecentInteractions_Analysis(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	msgs := []Message{
		{Timestamp: base, Sender: SenderSelf, Content: "hey there"},
		{Timestamp: base.Add(time.Minute), Sender: SenderContact, Content: "hi"},
		{Timestamp: base.Add(2 * time.Minute), Sender: SenderSelf, Content: "lunch today?"},
		{Timestamp: base.Add(3 * time.Minute), Sender: SenderSelf, Content: "or tomorrow"},
	}
	_, a := ExtractRecentInteractions(msgs, 75)

	if a.UserMessages != 3 || a.ContactMessages != 1 {
		t.Fatalf("user/contact=%d/%d, want 3/1", a.UserMessages, a.ContactMessages)
	}
	if a.ResponsePairs != 2 {
		t.Fatalf("ResponsePairs=%d, want 2", a.ResponsePairs)
	}
	if a.InteractionRatio != 3.0 {
		t.Fatalf("InteractionRatio=%v, want 3.0", a.InteractionRatio)
	}
	if a.ContactAvgLength != 2.0 {
		t.Fatalf("ContactAvgLength=%v, want 2.0", a.ContactAvgLength)
	}
}

func TestExtractRecentInteractions_RatioGuard(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	msgs := []Message{
		{Timestamp: base, Sender: SenderSelf, Content: "hello?"},
		{Timestamp: base.Add(time.Minute), Sender: SenderSelf, Content: "anyone home"},
	}
	_, a := ExtractRecentInteractions(msgs, 75)
	if a.InteractionRatio != 0 {
		t.Fatalf("InteractionRatio=%v, want 0 when contact never replied", a.InteractionRatio)
	}
}

func TestBuildRecentInteractionsDocument(t *testing.T) {
	t.Parallel()

	contact := ContactSummary{Name: "Alice Smith", PhoneNumbers: []string{"+15551234567"}}
	now := time.Date(2025, time.April, 2, 12, 0, 0, 0, time.UTC)
	doc := BuildRecentInteractionsDocument(contact, recentFixture(10), 75, now)

	if doc.Format != "recent_interactions_analysis" {
		t.Fatalf("Format=%q", doc.Format)
	}
	if doc.Contact.Name != "Alice Smith" {
		t.Fatalf("Contact=%+v", doc.Contact)
	}
	if len(doc.Messages) != 10 {
		t.Fatalf("len(Messages)=%d, want 10", len(doc.Messages))
	}
	if doc.Messages[0].Timestamp != "2025-04-01 09:00:00" {
		t.Fatalf("Timestamp=%q", doc.Messages[0].Timestamp)
	}
	if doc.GeneratedAt != "2025-04-02T12:00:00Z" {
		t.Fatalf("GeneratedAt=%q", doc.GeneratedAt)
	}
}
