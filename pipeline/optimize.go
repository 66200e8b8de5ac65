package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"
)

// OptimizeOptions controls the token-reduction pass that produces the main
// LLM conversation document.
type OptimizeOptions struct {
	// GroupWindow merges consecutive same-sender messages whose gap is at
	// most this long. Defaults to ten minutes.
	GroupWindow time.Duration

	// MinContentLength drops grouped messages shorter than this many bytes
	// after cleaning. Defaults to three.
	MinContentLength int
}

const (
	defaultGroupWindow      = 10 * time.Minute
	defaultMinContentLength = 3
)

var (
	readByArtifact    = regexp.MustCompile(`\(Read by .+?\)`)
	deliveredArtifact = regexp.MustCompile(`\(Delivered.+?\)`)
	respondedArtifact = regexp.MustCompile(`This message responded to an earlier message\.?`)
	repliedArtifact   = regexp.MustCompile(`Replied to ".+?"`)
	reactedArtifact   = regexp.MustCompile(`Reacted to ".+?" with .+`)
	tapbackArtifacts  = []*regexp.Regexp{
		regexp.MustCompile(`Emphasized ".+?"`),
		regexp.MustCompile(`Liked ".+?"`),
		regexp.MustCompile(`Loved ".+?"`),
		regexp.MustCompile(`Laughed at ".+?"`),
		regexp.MustCompile(`Questioned ".+?"`),
		regexp.MustCompile(`Disliked ".+?"`),
		regexp.MustCompile(`Tapback: .+`),
	}
	bracketedSystem = regexp.MustCompile(`\[.+?\]`)

	ellipsisRun    = regexp.MustCompile(`[.]{3,}`)
	exclamationRun = regexp.MustCompile(`[!]{2,}`)
	questionRun    = regexp.MustCompile(`[?]{2,}`)

	emojiSlug     = regexp.MustCompile(`:[\w-]+:`)
	longEmojiSlug = regexp.MustCompile(`:[\w-]{15,}:`)
	emojiTagRun   = regexp.MustCompile(`\(emoji\)(\s*\(emoji\))+`)
)

// Short acknowledgments that carry no signal for summarization. Dropped from
// the main LLM document only; the recent-interactions variant keeps them.
var shortMeaningless = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "kk": {}, "lol": {}, "haha": {},
	"yeah": {}, "yes": {}, "no": {}, "np": {}, "yep": {}, "nope": {},
	"sure": {}, "cool": {}, "nice": {}, "alright": {}, "ty": {}, "thx": {},
	"thanks": {}, "hmm": {}, "mhm": {}, "yup": {}, "nah": {}, "sup": {},
	"hey": {}, "hi": {}, "hello": {}, "bye": {},
}

// Common emoji slugs mapped to compact descriptors. Everything else collapses
// to a generic (emoji) tag or is removed outright when the slug is long noise.
var emojiShorthand = map[string]string{
	":face-with-tears-of-joy:":         "(laughing)",
	":rolling-on-the-floor-laughing:":  "(laughing)",
	":red-heart:":                      "(heart)",
	":smiling-face-with-heart-eyes:":   "(heart eyes)",
	":thumbs-up:":                      "(thumbs up)",
	":thumbs-down:":                    "(thumbs down)",
	":fire:":                           "(fire)",
	":clapping-hands:":                 "(clapping)",
	":folded-hands:":                   "(praying)",
	":crying-face:":                    "(crying)",
	":loudly-crying-face:":             "(crying)",
	":kissing-face:":                   "(kiss)",
	":thinking-face:":                  "(thinking)",
	":face-with-rolling-eyes:":         "(eye roll)",
	":person-shrugging:":               "(shrug)",
	":star-struck:":                    "(amazed)",
	":partying-face:":                  "(party)",
	":smiling-face:":                   "",
	":winking-face:":                   "",
	":grinning-face:":                  "",
	":beaming-face-with-smiling-eyes:": "",
}

// DemojizeContent converts emoji to :slug: descriptors, collapses immediate
// duplicate runs, shortens common ones, and reduces the remainder to a
// generic tag.
func DemojizeContent(content string) string {
	if content == "" {
		return content
	}

	// ReplaceEmojisWithSlug emits bare slugs; the shorthand table and the
	// slug regexes all key on the colon-delimited form.
	content = gomoji.ReplaceEmojisWithFunc(content, func(em gomoji.Emoji) string {
		return ":" + em.Slug + ":"
	})
	content = collapseDuplicateSlugRuns(content)

	for slug, replacement := range emojiShorthand {
		content = strings.ReplaceAll(content, slug, replacement)
	}

	content = longEmojiSlug.ReplaceAllString(content, "")
	content = emojiSlug.ReplaceAllString(content, "(emoji)")
	content = emojiTagRun.ReplaceAllString(content, "(emoji)")

	if strings.TrimSpace(content) == "(emoji)" {
		return ""
	}
	return normalizeSpace(content)
}

// normalizeSpace collapses runs of spaces and tabs but keeps line structure,
// dropping lines that end up empty. Grouped messages join parts with newlines,
// so cleaning must not flatten them or repeated cleaning would change content.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// collapseDuplicateSlugRuns reduces :heart::heart::heart: to :heart:.
// Re2 has no backreferences, so adjacent identical slugs are merged by
// scanning match positions.
func collapseDuplicateSlugRuns(s string) string {
	locs := emojiSlug.FindAllStringIndex(s, -1)
	if len(locs) < 2 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prevEnd := 0
	prevSlug := ""
	for _, loc := range locs {
		gap := s[prevEnd:loc[0]]
		slug := s[loc[0]:loc[1]]
		if slug == prevSlug && strings.TrimSpace(gap) == "" {
			prevEnd = loc[1]
			continue
		}
		b.WriteString(gap)
		b.WriteString(slug)
		prevEnd = loc[1]
		prevSlug = slug
	}
	b.WriteString(s[prevEnd:])
	return b.String()
}

// CleanMessageContent reduces a message to its LLM-relevant core: normalized
// whitespace, demojized emoji, system artifacts stripped, filler
// acknowledgments and sub-minimal fragments dropped, punctuation runs
// collapsed. Returns "" when nothing meaningful survives.
func CleanMessageContent(content string) string {
	if content == "" {
		return ""
	}

	content = normalizeSpace(content)
	content = DemojizeContent(content)
	content = stripSystemArtifacts(content)
	content = normalizeSpace(content)

	if _, filler := shortMeaningless[strings.ToLower(strings.TrimSpace(content))]; filler {
		return ""
	}
	if len(strings.TrimSpace(content)) <= 2 {
		return ""
	}

	content = ellipsisRun.ReplaceAllString(content, "...")
	content = exclamationRun.ReplaceAllString(content, "!")
	content = questionRun.ReplaceAllString(content, "?")

	return strings.TrimSpace(content)
}

func stripSystemArtifacts(content string) string {
	content = readByArtifact.ReplaceAllString(content, "")
	content = deliveredArtifact.ReplaceAllString(content, "")
	content = respondedArtifact.ReplaceAllString(content, "")
	content = repliedArtifact.ReplaceAllString(content, "")
	content = reactedArtifact.ReplaceAllString(content, "")
	for _, p := range tapbackArtifacts {
		content = p.ReplaceAllString(content, "")
	}
	return bracketedSystem.ReplaceAllString(content, "")
}

// GroupConsecutiveMessages merges runs of same-sender messages whose gaps fit
// inside the window into one logical message. The group keeps the first
// message's timestamp and sender; contents join with a newline. Near-duplicate
// fragments inside a run are suppressed. The operation is a fixed point:
// grouping an already-grouped sequence merges nothing further, because
// surviving adjacent same-sender groups are by construction more than a
// window apart.
func GroupConsecutiveMessages(msgs []Message, window time.Duration) []Message {
	if window <= 0 {
		window = defaultGroupWindow
	}

	var grouped []Message
	var current *Message

	for _, m := range msgs {
		cleaned := CleanMessageContent(m.Content)
		if cleaned == "" {
			continue
		}

		startNew := current == nil ||
			current.Sender != m.Sender ||
			m.Timestamp.Sub(current.Timestamp) > window

		if startNew {
			if current != nil {
				grouped = append(grouped, *current)
			}
			g := m
			g.Content = cleaned
			current = &g
			continue
		}

		if !containsSimilar(current.Content, cleaned) {
			current.Content += "\n" + cleaned
		}
	}
	if current != nil {
		grouped = append(grouped, *current)
	}
	return grouped
}

// containsSimilar reports whether adding next to the accumulated group text
// would just duplicate it.
func containsSimilar(existing, next string) bool {
	e := strings.ToLower(existing)
	n := strings.ToLower(next)
	if strings.Contains(e, n) {
		return true
	}
	shorter, longer := e, n
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return false
	}
	return strings.Contains(longer, shorter) &&
		float64(len(shorter))/float64(len(longer)) > 0.8
}

// OptimizeForLLM applies the full reduction: clean, group, and filter out
// anything that ends up shorter than the minimum content length.
func OptimizeForLLM(msgs []Message, opts OptimizeOptions) []Message {
	if opts.GroupWindow <= 0 {
		opts.GroupWindow = defaultGroupWindow
	}
	if opts.MinContentLength <= 0 {
		opts.MinContentLength = defaultMinContentLength
	}

	grouped := GroupConsecutiveMessages(msgs, opts.GroupWindow)
	filtered := grouped[:0]
	for _, m := range grouped {
		if len(strings.TrimSpace(m.Content)) >= opts.MinContentLength {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
