package pipeline

import (
	"strings"
	"time"
)

// DefaultRecentCount is how many trailing messages the recent-interactions
// document keeps when the caller does not override it.
const DefaultRecentCount = 75

// CleanMessageContentMinimal strips system artifacts but keeps short
// acknowledgments, filler, and raw emoji intact. The recent-interactions
// document exists for style analysis, where "kk", "lol", and emoji use are
// signal, not noise.
func CleanMessageContentMinimal(content string) string {
	if content == "" {
		return ""
	}
	content = normalizeSpace(content)
	content = stripSystemArtifacts(content)
	return strings.TrimSpace(normalizeSpace(content))
}

// InteractionAnalysis summarizes the communication dynamics of the retained
// window of recent messages.
type InteractionAnalysis struct {
	MessageCount     int     `json:"message_count"`
	UserMessages     int     `json:"user_messages"`
	ContactMessages  int     `json:"contact_messages"`
	ResponsePairs    int     `json:"response_pairs"`
	UserAvgLength    float64 `json:"user_avg_message_length"`
	ContactAvgLength float64 `json:"contact_avg_message_length"`
	TimespanHours    float64 `json:"timespan_hours"`
	InteractionRatio float64 `json:"interaction_ratio"`
}

// RecentInteractionsDocument is the lightly processed tail of a conversation,
// preserved near-verbatim for voice and style analysis.
type RecentInteractionsDocument struct {
	Format      string              `json:"format"`
	Purpose     string              `json:"purpose"`
	Contact     ContactSummary      `json:"contact"`
	Analysis    InteractionAnalysis `json:"interaction_analysis"`
	Messages    []DocMessage        `json:"recent_messages"`
	GeneratedAt string              `json:"generated_at"`
}

const recentInteractionsPurpose = "Capture authentic communication patterns and voice for style matching"

// ExtractRecentInteractions takes the last count messages of a sorted
// timeline, then applies minimal cleaning and drops what cleans to empty.
// The window is cut before cleaning, so a receipt-only tail message shrinks
// the output instead of pulling older messages in.
func ExtractRecentInteractions(msgs []Message, count int) ([]Message, InteractionAnalysis) {
	if count <= 0 {
		count = DefaultRecentCount
	}

	window := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind == KindSystem {
			continue
		}
		window = append(window, m)
	}
	if len(window) > count {
		window = window[len(window)-count:]
	}

	recent := make([]Message, 0, len(window))
	for _, m := range window {
		cleaned := CleanMessageContentMinimal(m.Content)
		if cleaned == "" {
			continue
		}
		c := m
		c.Content = cleaned
		recent = append(recent, c)
	}

	return recent, analyzeInteractions(recent)
}

func analyzeInteractions(msgs []Message) InteractionAnalysis {
	var a InteractionAnalysis
	a.MessageCount = len(msgs)
	if len(msgs) == 0 {
		return a
	}

	var userChars, contactChars int
	var prevSender string
	for _, m := range msgs {
		if m.Sender == SenderSelf {
			a.UserMessages++
			userChars += len(m.Content)
		} else {
			a.ContactMessages++
			contactChars += len(m.Content)
		}
		// A response pair is any sender alternation.
		if prevSender != "" && m.Sender != prevSender {
			a.ResponsePairs++
		}
		prevSender = m.Sender
	}

	if a.UserMessages > 0 {
		a.UserAvgLength = round2(float64(userChars) / float64(a.UserMessages))
	}
	if a.ContactMessages > 0 {
		a.ContactAvgLength = round2(float64(contactChars) / float64(a.ContactMessages))
	}
	if a.ContactMessages > 0 {
		a.InteractionRatio = round2(float64(a.UserMessages) / float64(a.ContactMessages))
	}

	first := msgs[0].Timestamp
	last := msgs[len(msgs)-1].Timestamp
	if last.After(first) {
		a.TimespanHours = round2(last.Sub(first).Hours())
	}
	return a
}

// BuildRecentInteractionsDocument assembles the serializable recent-window
// artifact for one contact.
func BuildRecentInteractionsDocument(contact ContactSummary, msgs []Message, count int, now time.Time) RecentInteractionsDocument {
	if now.IsZero() {
		now = time.Now()
	}
	recent, analysis := ExtractRecentInteractions(msgs, count)

	docMsgs := make([]DocMessage, 0, len(recent))
	for _, m := range recent {
		docMsgs = append(docMsgs, DocMessage{
			Timestamp: m.Timestamp.Format("2006-01-02 15:04:05"),
			Sender:    m.Sender,
			Content:   m.Content,
		})
	}

	return RecentInteractionsDocument{
		Format:      "recent_interactions_analysis",
		Purpose:     recentInteractionsPurpose,
		Contact:     contact,
		Analysis:    analysis,
		Messages:    docMsgs,
		GeneratedAt: now.Format(time.RFC3339),
	}
}
