package pipeline

import (
	"math"
	"time"
)

// ConversationInsights is the derived, immutable statistics snapshot for one
// contact's merged message sequence. It is computed, never hand-edited.
type ConversationInsights struct {
	TotalMessages      int            `json:"total_messages"`
	SentMessages       int            `json:"sent_messages"`
	ReceivedMessages   int            `json:"received_messages"`
	DateRange          string         `json:"date_range"`
	SpanDays           int            `json:"conversation_span_days"`
	FrequencyPerDay    float64        `json:"message_frequency_per_day"`
	IdentityUsage      map[string]int `json:"identity_usage,omitempty"`
	MostActiveIdentity string         `json:"most_active_identity,omitempty"`
	ReadReceiptCount   int            `json:"read_receipt_count,omitempty"`
	AverageReadMinutes float64        `json:"average_read_minutes,omitempty"`
}

// AnalyticsOptions parameterizes date-range rendering. RecencyWindow decides
// when the range ends with "present" instead of a literal date; Now anchors
// that comparison so runs are reproducible in tests.
type AnalyticsOptions struct {
	Now           time.Time
	RecencyWindow time.Duration
}

const defaultRecencyWindow = 7 * 24 * time.Hour

// AnalyzeConversation computes insights over a sorted merged sequence.
// System messages are excluded from every count. Span days are clamped to a
// minimum of one so frequency can never divide by zero.
func AnalyzeConversation(msgs []Message, opts AnalyticsOptions) ConversationInsights {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = defaultRecencyWindow
	}

	var in ConversationInsights
	usage := make(map[string]int)
	var usageOrder []string

	var first, last time.Time
	var readCount int
	var readTotal time.Duration

	for _, m := range msgs {
		if m.Kind == KindSystem {
			continue
		}
		in.TotalMessages++
		if m.Sender == SenderSelf {
			in.SentMessages++
		} else {
			in.ReceivedMessages++
		}
		if m.source != "" {
			if _, seen := usage[m.source]; !seen {
				usageOrder = append(usageOrder, m.source)
			}
			usage[m.source]++
		}
		if m.ReadReceipt != nil {
			readCount++
			readTotal += m.ReadReceipt.Elapsed
		}
		if first.IsZero() || m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}

	if in.TotalMessages == 0 {
		in.DateRange = "Unknown"
		in.SpanDays = 1
		return in
	}

	spanDays := int(last.Sub(first).Hours() / 24)
	if spanDays < 1 {
		spanDays = 1
	}
	in.SpanDays = spanDays
	in.FrequencyPerDay = round2(float64(in.TotalMessages) / float64(spanDays))

	end := last.Format("2006-01-02")
	if opts.Now.Sub(last) <= opts.RecencyWindow {
		end = "present"
	}
	in.DateRange = first.Format("2006-01-02") + " to " + end

	if len(usage) > 0 {
		in.IdentityUsage = usage
		// Argmax with first-seen tie break.
		best := usageOrder[0]
		for _, id := range usageOrder[1:] {
			if usage[id] > usage[best] {
				best = id
			}
		}
		in.MostActiveIdentity = best
	}

	if readCount > 0 {
		in.ReadReceiptCount = readCount
		in.AverageReadMinutes = round2(readTotal.Minutes() / float64(readCount))
	}

	return in
}

// LastMessageInfo is the quick-glance block for the most recent message in a
// contact's timeline.
type LastMessageInfo struct {
	Date      string `json:"last_message_date"`
	Timestamp string `json:"last_message_timestamp"`
	Sender    string `json:"last_message_sender"`
	Preview   string `json:"last_message_preview"`
}

const lastMessagePreviewChars = 100

// BuildLastMessageInfo summarizes the final message of a sorted sequence, or
// returns nil for an empty one.
func BuildLastMessageInfo(msgs []Message) *LastMessageInfo {
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	preview := last.Content
	if runes := []rune(preview); len(runes) > lastMessagePreviewChars {
		preview = string(runes[:lastMessagePreviewChars])
	}
	return &LastMessageInfo{
		Date:      last.Timestamp.Format("2006-01-02"),
		Timestamp: last.Timestamp.Format(time.RFC3339),
		Sender:    last.Sender,
		Preview:   preview,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
