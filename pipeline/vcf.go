package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
)

// ParseContactCards decodes a vCard stream into contact cards. Cards without
// a formatted name are skipped; phone numbers are canonicalized on the way in
// so downstream matching never sees raw formatting. A decode error after the
// first card returns the cards read so far alongside the error, letting the
// caller export what it can from a partially corrupt address book.
func ParseContactCards(r io.Reader) ([]ContactCard, error) {
	dec := vcard.NewDecoder(r)

	var cards []ContactCard
	for {
		card, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return cards, nil
			}
			return cards, fmt.Errorf("ParseContactCards: decode vcard %d: %w", len(cards)+1, err)
		}

		c, ok := cardFromVCard(card)
		if !ok {
			continue
		}
		cards = append(cards, c)
	}
}

func cardFromVCard(card vcard.Card) (ContactCard, bool) {
	name := strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName))
	if name == "" {
		return ContactCard{}, false
	}

	c := ContactCard{
		Name:     name,
		Title:    strings.TrimSpace(card.PreferredValue(vcard.FieldTitle)),
		Birthday: strings.TrimSpace(card.PreferredValue(vcard.FieldBirthday)),
		Note:     strings.TrimSpace(card.PreferredValue(vcard.FieldNote)),
	}

	// ORG is component-structured; the first component is the organization
	// name, the rest are org units.
	if org := card.PreferredValue(vcard.FieldOrganization); org != "" {
		c.Organization = strings.TrimSpace(strings.SplitN(org, ";", 2)[0])
	}

	for _, f := range card[vcard.FieldTelephone] {
		raw := strings.TrimSpace(f.Value)
		if raw == "" {
			continue
		}
		canonical, ok := NormalizePhoneNumber(raw)
		if !ok {
			canonical = raw
		}
		c.Phones = append(c.Phones, PhoneNumber{
			Number:   canonical,
			Original: raw,
			Type:     primaryType(f),
		})
	}

	for _, f := range card[vcard.FieldEmail] {
		addr := strings.ToLower(strings.TrimSpace(f.Value))
		if addr == "" {
			continue
		}
		c.Emails = append(c.Emails, EmailAddress{Address: addr, Type: primaryType(f)})
	}

	for _, f := range card[vcard.FieldURL] {
		url := strings.TrimSpace(f.Value)
		if url == "" {
			continue
		}
		c.URLs = append(c.URLs, ProfileURL{URL: url, Platform: detectPlatform(url)})
	}

	for _, f := range card[vcard.FieldAddress] {
		if addr := formatAddress(f.Value); addr != "" {
			c.Addresses = append(c.Addresses, addr)
		}
	}

	return c, true
}

func primaryType(f *vcard.Field) string {
	types := f.Params.Types()
	for _, t := range types {
		t = strings.ToLower(t)
		if t != "pref" && t != "voice" {
			return t
		}
	}
	return ""
}

var platformHosts = []struct {
	fragment string
	platform string
}{
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"instagram.com", "instagram"},
	{"linkedin.com", "linkedin"},
	{"facebook.com", "facebook"},
	{"github.com", "github"},
	{"tiktok.com", "tiktok"},
	{"youtube.com", "youtube"},
}

func detectPlatform(url string) string {
	lower := strings.ToLower(url)
	for _, h := range platformHosts {
		if strings.Contains(lower, h.fragment) {
			return h.platform
		}
	}
	return ""
}

// formatAddress flattens the semicolon-structured ADR value into a single
// readable line, dropping empty components.
func formatAddress(value string) string {
	parts := strings.Split(value, ";")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
