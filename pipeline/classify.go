package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ConversationClass says whether an export unit is a one-to-one conversation
// or a group chat. Only individual conversations flow into per-contact
// artifacts; anything ambiguous is classified as a group so that group
// content can never leak into an individual document.
type ConversationClass int

const (
	ClassGroup ConversationClass = iota
	ClassIndividual
)

func (c ConversationClass) String() string {
	if c == ClassIndividual {
		return "individual"
	}
	return "group"
}

// ExportUnit is one raw conversation export blob tagged with the participant
// identifier parsed from its filename. Read once, classified once, never
// mutated.
type ExportUnit struct {
	Identifier string
	Raw        string
}

// LoadExportUnits reads every .txt export in dir, one unit per file, with the
// filename stem as the participant identifier. Files are returned in sorted
// order so runs are deterministic.
func LoadExportUnits(dir string) ([]ExportUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadExportUnits: %w", err)
	}

	var units []ExportUnit
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("LoadExportUnits: read %s: %w", entry.Name(), err)
		}
		units = append(units, ExportUnit{
			Identifier: strings.TrimSuffix(entry.Name(), ".txt"),
			Raw:        string(raw),
		})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Identifier < units[j].Identifier })
	return units, nil
}

var trailingGroupID = regexp.MustCompile(` - \d+$`)

// ClassifyExportUnit decides individual vs group from the identifier alone;
// it never inspects file contents. The group signal is structural (a
// comma-like separator, a trailing numeric group ID, or a free-text label),
// not digit count: a bare 5-digit shortcode with no separator is still an
// individual conversation.
func ClassifyExportUnit(identifier string) ConversationClass {
	name := strings.TrimSpace(strings.TrimSuffix(identifier, ".txt"))
	if name == "" {
		return ClassGroup
	}

	if trailingGroupID.MatchString(name) {
		return ClassGroup
	}

	tokens := splitParticipants(name)
	if len(tokens) != 1 {
		return ClassGroup
	}

	token := tokens[0]
	if looksLikeEmail(token) {
		return ClassIndividual
	}
	if isBareDialString(token) {
		return ClassIndividual
	}

	// A single token that is neither a phone number nor an email is a named
	// group ("Family Trip 🎉", "DMV Gang 💯").
	return ClassGroup
}

// splitParticipants splits a multi-participant identifier on comma-like
// separators, dropping empty fragments.
func splitParticipants(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isBareDialString reports whether the token is just digits with an optional
// leading plus. Length is deliberately not checked: shortcodes count.
func isBareDialString(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
