package pipeline

import "strings"

// NormalizePhoneNumber canonicalizes a raw phone string to +1XXXXXXXXXX form
// where possible. The second return reports whether the input was recognized
// as a phone number; identifiers that are not plausible phone numbers (they
// contain letters, or carry fewer than seven digits) are returned unchanged
// and flagged false so callers can treat them as opaque labels.
//
// The function is pure, total, and idempotent: every input maps to some
// canonical form, and normalizing an already-canonical value is a no-op.
func NormalizePhoneNumber(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw, false
	}
	if containsLetter(trimmed) {
		return raw, false
	}

	cleaned := stripNonDialing(trimmed)
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < 7 {
		return raw, false
	}

	switch {
	case strings.HasPrefix(cleaned, "+1") && len(digits) == 11:
		return cleaned, true
	case strings.HasPrefix(digits, "1") && len(digits) == 11:
		return "+" + digits, true
	case len(digits) == 10:
		return "+1" + digits, true
	}

	// International or otherwise unrecognized but plausible: keep the digits,
	// ensure the leading plus.
	if strings.HasPrefix(cleaned, "+") {
		return cleaned, true
	}
	return "+" + digits, true
}

// stripNonDialing removes everything except digits and a leading plus.
func stripNonDialing(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// looksLikeEmail is the minimal shape check used for identifier
// classification: one @ with non-empty local part and a dotted domain.
func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at != strings.LastIndex(s, "@") {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// CanonicalIdentifier maps any participant identifier (phone or email) to the
// form used for registry lookups: canonical phone form for numbers, lowercase
// for emails, and the trimmed original for everything else.
func CanonicalIdentifier(raw string) string {
	if n, ok := NormalizePhoneNumber(raw); ok {
		return n
	}
	trimmed := strings.TrimSpace(raw)
	if looksLikeEmail(trimmed) {
		return strings.ToLower(trimmed)
	}
	return trimmed
}

// IdentityRegistry maps canonical identifiers to contact names. It is built
// once per run from the contact cards and read concurrently afterwards; it is
// never mutated during per-contact processing.
type IdentityRegistry struct {
	byID map[string]string
}

func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{byID: make(map[string]string)}
}

// Register associates every identifier with the contact name. First
// registration wins: two cards sharing a number resolve to whichever card was
// seen first, mirroring address-book merge behavior.
func (r *IdentityRegistry) Register(contactName string, identifiers ...string) {
	for _, id := range identifiers {
		key := CanonicalIdentifier(id)
		if key == "" {
			continue
		}
		if _, ok := r.byID[key]; !ok {
			r.byID[key] = contactName
		}
	}
}

// Lookup resolves an identifier to a contact name.
func (r *IdentityRegistry) Lookup(identifier string) (string, bool) {
	name, ok := r.byID[CanonicalIdentifier(identifier)]
	return name, ok
}

// Len reports the number of distinct registered identifiers.
func (r *IdentityRegistry) Len() int {
	return len(r.byID)
}
