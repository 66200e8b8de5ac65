package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Message senders as they appear in every downstream artifact.
const (
	SenderSelf    = "me"
	SenderContact = "contact"
)

// MessageKind tags what a parsed message represents. Only text messages feed
// analytics and word counts.
type MessageKind int

const (
	KindText MessageKind = iota
	KindSystem
	KindTapback
	KindEditNotice
)

// ReadReceipt is the receipt annotation attached to the message it follows in
// the export, never emitted as a message of its own.
type ReadReceipt struct {
	ReadBy  string        `json:"read_by"`
	Elapsed time.Duration `json:"elapsed"`
}

// Message is one parsed message. Source carries the identifier of the export
// unit it came from; it is internal provenance used by analytics and never
// serialized into documents.
type Message struct {
	Timestamp   time.Time
	Sender      string
	Content     string
	Kind        MessageKind
	ReadReceipt *ReadReceipt

	source string
}

// Timestamp layouts produced by the message export tool, tried in order.
var timestampLayouts = []string{
	"Jan 2, 2006 3:04:05 PM",
	"1/2/06 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"2006-01-02 15:04:05",
}

var (
	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^([A-Z][a-z]{2} \d{1,2}, \d{4}\s+\d{1,2}:\d{2}:\d{2}\s+[AP]M)`),
		regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}\s+\d{1,2}:\d{2}:\d{2}\s+[AP]M)`),
		regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
	}

	readReceiptPattern = regexp.MustCompile(`^\(Read by (you|them) after (.+)\)`)
	deliveredPattern   = regexp.MustCompile(`^\(Delivered.*\)`)
	tapbackPattern     = regexp.MustCompile(`^Tapback: `)
	reactionPattern    = regexp.MustCompile(`^(Reacted to|Emphasized|Liked|Loved|Laughed at|Questioned|Disliked) "`)
	respondedPattern   = regexp.MustCompile(`^This message responded to an earlier message`)
	editedPattern      = regexp.MustCompile(`^Edited( .*)?$`)
	attachmentPattern  = regexp.MustCompile(`^(/|~/).*\.(jpeg|jpg|png|gif|heic|mov|mp4|caf|vcf|pdf|webp|tiff)$|/Attachments/`)

	hoursPattern   = regexp.MustCompile(`(\d+)\s*hours?`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*minutes?`)
	secondsPattern = regexp.MustCompile(`(\d+)\s*seconds?`)
)

// ParseElapsedPhrase turns a free-text duration like
// "3 hours, 27 minutes, 39 seconds" into a time.Duration. Each component is
// matched independently; any subset may be present, absent components are
// zero. Unrecognizable phrases come back as zero.
func ParseElapsedPhrase(phrase string) time.Duration {
	var d time.Duration
	if m := hoursPattern.FindStringSubmatch(phrase); m != nil {
		d += time.Duration(atoiSafe(m[1])) * time.Hour
	}
	if m := minutesPattern.FindStringSubmatch(phrase); m != nil {
		d += time.Duration(atoiSafe(m[1])) * time.Minute
	}
	if m := secondsPattern.FindStringSubmatch(phrase); m != nil {
		d += time.Duration(atoiSafe(m[1])) * time.Second
	}
	return d
}

func atoiSafe(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

// parserState is the explicit state of the line machine.
type parserState int

const (
	stateScanning parserState = iota
	stateSenderExpected
	stateAccumulating
)

// lineCursor walks the raw export line by line without manual index
// bookkeeping at call sites.
type lineCursor struct {
	lines []string
	pos   int
}

func newLineCursor(raw string) *lineCursor {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return &lineCursor{lines: strings.Split(normalized, "\n")}
}

func (c *lineCursor) next() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	line := c.lines[c.pos]
	c.pos++
	return line, true
}

// ParseMessages converts a raw export blob into an ordered message sequence.
// selfLabel is the sender line the export tool writes for the device owner
// (normally "Me"); source tags every emitted message with the unit's
// identifier for per-identity analytics.
//
// Malformed or unrecognized lines are skipped, never fatal: exported chat
// logs are not a controlled format, and partial extraction beats a hard
// failure. The result is stably sorted ascending by timestamp.
func ParseMessages(raw, selfLabel, source string) []Message {
	if selfLabel == "" {
		selfLabel = "Me"
	}

	var (
		out     []Message
		state   = stateScanning
		current Message
		content []string
		cursor  = newLineCursor(raw)
	)

	emit := func() {
		current.Content = strings.TrimSpace(strings.Join(content, "\n"))
		content = content[:0]
		// Pure metadata turns produce no message.
		if current.Content == "" {
			return
		}
		out = append(out, current)
	}

	lastEmitted := func() *Message {
		if len(out) == 0 {
			return nil
		}
		return &out[len(out)-1]
	}

	for {
		line, ok := cursor.next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)

		if ts, matched := matchTimestamp(line); matched {
			if state == stateAccumulating {
				emit()
			}
			current = Message{Timestamp: ts, Kind: KindText, source: source}
			state = stateSenderExpected
			continue
		}

		if line == "" {
			continue
		}

		if receipt, phrase, isReceipt := matchReadReceipt(line); isReceipt {
			// Receipts annotate the previously emitted message; inside an
			// accumulating turn they annotate the turn being built.
			switch state {
			case stateAccumulating:
				current.ReadReceipt = &ReadReceipt{ReadBy: receipt, Elapsed: ParseElapsedPhrase(phrase)}
			default:
				if prev := lastEmitted(); prev != nil && prev.ReadReceipt == nil {
					prev.ReadReceipt = &ReadReceipt{ReadBy: receipt, Elapsed: ParseElapsedPhrase(phrase)}
				}
			}
			continue
		}

		if isSkippableMetadata(line) {
			continue
		}

		switch state {
		case stateScanning:
			// Stray content outside any timestamped turn; drop it.
		case stateSenderExpected:
			if line == selfLabel {
				current.Sender = SenderSelf
			} else {
				current.Sender = SenderContact
			}
			state = stateAccumulating
		case stateAccumulating:
			content = append(content, line)
		}
	}

	if state == stateAccumulating {
		emit()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func matchTimestamp(line string) (time.Time, bool) {
	for _, p := range timestampPatterns {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		stamp := strings.Join(strings.Fields(m[1]), " ")
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, stamp); err == nil {
				return t, true
			}
		}
		// The line looked like a timestamp but did not parse; treat it as an
		// unrecognized line rather than aborting.
		return time.Time{}, false
	}
	return time.Time{}, false
}

func matchReadReceipt(line string) (readBy, phrase string, ok bool) {
	m := readReceiptPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	if m[1] == "you" {
		readBy = SenderSelf
	} else {
		readBy = SenderContact
	}
	return readBy, m[2], true
}

// isSkippableMetadata reports lines that never become message content: edit
// markers, tapback and reaction notices, delivery receipts, reply
// annotations, and attachment file paths.
func isSkippableMetadata(line string) bool {
	return deliveredPattern.MatchString(line) ||
		tapbackPattern.MatchString(line) ||
		reactionPattern.MatchString(line) ||
		respondedPattern.MatchString(line) ||
		editedPattern.MatchString(line) ||
		attachmentPattern.MatchString(line)
}

// MergeSequences combines per-unit sequences into one contact timeline,
// restoring the global timestamp order with a stable sort so same-instant
// messages keep their original encounter order.
func MergeSequences(sequences ...[]Message) []Message {
	var total int
	for _, s := range sequences {
		total += len(s)
	}
	merged := make([]Message, 0, total)
	for _, s := range sequences {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
