package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder grammar for anonymized documents. Person-scoped placeholders
// carry the person ID so the same contact resolves identically across every
// artifact of a run; phones and emails additionally carry a per-contact index.
const (
	personPlaceholderFmt = "[[PERSON_%d]]"
	phonePlaceholderFmt  = "[[PHONE_%d_%d]]"
	emailPlaceholderFmt  = "[[EMAIL_%d_%d]]"
	orgPlaceholderFmt    = "[[ORGANIZATION_%d]]"
	socialPlaceholderFmt = "[[SOCIAL_MEDIA_%d]]"
	addressPlaceholder   = "[[ADDRESS_%d]]"
	credsPlaceholder     = "[[CREDENTIALS]]"
)

var (
	emailInContent        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	partialEmailInContent = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\b`)
	phoneInContent        = regexp.MustCompile(`\+?\d{0,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

	socialLinkPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:twitter\.com|x\.com)/[A-Za-z0-9_]+`),
		regexp.MustCompile(`instagram\.com/[A-Za-z0-9_.]+`),
		regexp.MustCompile(`linkedin\.com/in/[A-Za-z0-9_-]+`),
		regexp.MustCompile(`facebook\.com/[A-Za-z0-9.]+`),
		regexp.MustCompile(`github\.com/[A-Za-z0-9_-]+`),
	}

	usernameContextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(github|gh)\s+user(?:name)?\s+is\s+([A-Za-z0-9_-]{3,})`),
		regexp.MustCompile(`(?i)(twitter)\s+handle\s+is\s+@?([A-Za-z0-9_]{3,})`),
		regexp.MustCompile(`(?i)(instagram|ig)\s+(?:is|username)\s+@?([A-Za-z0-9_.]{3,})`),
		regexp.MustCompile(`(?i)(linkedin)\s+(?:is|profile)\s+([A-Za-z0-9_-]{3,})`),
		regexp.MustCompile(`(?i)(discord)\s+(?:is|tag)\s+([A-Za-z0-9_#.]{3,})`),
		regexp.MustCompile(`(?i)(telegram)\s+(?:is|username)\s+@?([A-Za-z0-9_]{3,})`),
		regexp.MustCompile(`(?i)(?:my\s+)?username\s+(?:is|:)\s+([A-Za-z0-9_.-]{3,})`),
	}

	passwordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)passw[o0]rd\s*(?:is|[=:])\s*(\S{6,})`),
		regexp.MustCompile(`(?i)pwd\s+(?:is|:)\s+(\S{6,})`),
		regexp.MustCompile(`(?i)credentials\s+(?:are|is|:)\s+(\S{6,})`),
		regexp.MustCompile(`(?i)login\s+(?:is|:)\s+(\S{6,})`),
	}
)

// PrivacyMapping is the per-contact restoration record written next to the
// anonymized artifacts. Placeholders key every map so a reader can mechanically
// substitute originals back in. Credentials store only a redaction note, never
// the secret itself.
type PrivacyMapping struct {
	Name              string            `json:"name"`
	PersonID          int               `json:"person_id"`
	PersonPlaceholder string            `json:"person_placeholder"`
	Phones            map[string]string `json:"phones"`
	Emails            map[string]string `json:"emails"`
	Organizations     map[string]string `json:"organizations"`
	SocialMedia       map[string]string `json:"social_media"`
	Addresses         map[string]string `json:"addresses"`
	Credentials       map[string]string `json:"credentials"`
	OriginalContact   ContactSummary    `json:"original_data"`
}

// Anonymizer assigns stable placeholder IDs across one export run. It is not
// safe for concurrent use; the exporter anonymizes contacts sequentially.
type Anonymizer struct {
	enabled bool

	personSeq int
	personIDs map[string]int

	orgSeq int
	orgIDs map[string]int

	socialSeq int
	socialIDs map[string]int

	addrSeq int
	addrIDs map[string]int
}

// NewAnonymizer builds a run-scoped anonymizer. When disabled, every
// anonymize call passes data through untouched and produces no mapping.
func NewAnonymizer(enabled bool) *Anonymizer {
	return &Anonymizer{
		enabled:   enabled,
		personIDs: make(map[string]int),
		orgIDs:    make(map[string]int),
		socialIDs: make(map[string]int),
		addrIDs:   make(map[string]int),
	}
}

// Enabled reports whether anonymization is active for this run.
func (a *Anonymizer) Enabled() bool { return a.enabled }

// PersonID returns the stable numeric ID for a contact name, assigning the
// next one on first sight.
func (a *Anonymizer) PersonID(name string) int {
	if id, ok := a.personIDs[name]; ok {
		return id
	}
	a.personSeq++
	a.personIDs[name] = a.personSeq
	return a.personSeq
}

func (a *Anonymizer) personPlaceholder(name string) string {
	return fmt.Sprintf(personPlaceholderFmt, a.PersonID(name))
}

func (a *Anonymizer) orgPlaceholder(org string) string {
	if id, ok := a.orgIDs[org]; ok {
		return fmt.Sprintf(orgPlaceholderFmt, id)
	}
	a.orgSeq++
	a.orgIDs[org] = a.orgSeq
	return fmt.Sprintf(orgPlaceholderFmt, a.orgSeq)
}

func (a *Anonymizer) socialPlaceholder(handle string) string {
	if id, ok := a.socialIDs[handle]; ok {
		return fmt.Sprintf(socialPlaceholderFmt, id)
	}
	a.socialSeq++
	a.socialIDs[handle] = a.socialSeq
	return fmt.Sprintf(socialPlaceholderFmt, a.socialSeq)
}

func (a *Anonymizer) addrID(addr string) int {
	if id, ok := a.addrIDs[addr]; ok {
		return id
	}
	a.addrSeq++
	a.addrIDs[addr] = a.addrSeq
	return a.addrSeq
}

// GlobalMappings returns the run-wide identifier assignments for the master
// privacy file.
func (a *Anonymizer) GlobalMappings() map[string]map[string]int {
	return map[string]map[string]int{
		"global_person_mapping":       a.personIDs,
		"global_organization_mapping": a.orgIDs,
		"global_social_media_mapping": a.socialIDs,
		"global_address_mapping":      a.addrIDs,
	}
}

// AnonymizeConversation rewrites a conversation document in place, replacing
// the contact's identity, identifiers, and any sensitive content fragments
// with placeholders, and returns the restoration mapping. Addresses are
// recorded in the mapping but removed from the anonymized document entirely.
//
// Returns a nil mapping without touching the document when anonymization is
// disabled. Returns an error if a placeholder would collide with text already
// present in the source; the caller must then skip anonymized output for this
// contact rather than ship an ambiguous document.
func (a *Anonymizer) AnonymizeConversation(doc *ConversationDocument, contactName string) (*PrivacyMapping, error) {
	if !a.enabled {
		return nil, nil
	}

	m := &PrivacyMapping{
		Name:              contactName,
		PersonID:          a.PersonID(contactName),
		PersonPlaceholder: a.personPlaceholder(contactName),
		Phones:            make(map[string]string),
		Emails:            make(map[string]string),
		Organizations:     make(map[string]string),
		SocialMedia:       make(map[string]string),
		Addresses:         make(map[string]string),
		Credentials:       make(map[string]string),
		OriginalContact:   doc.Contact,
	}

	if err := a.checkCollisions(doc, m.PersonPlaceholder); err != nil {
		return nil, err
	}

	doc.Contact.Name = m.PersonPlaceholder
	for i, phone := range doc.Contact.PhoneNumbers {
		ph := fmt.Sprintf(phonePlaceholderFmt, m.PersonID, i+1)
		m.Phones[ph] = phone
		doc.Contact.PhoneNumbers[i] = ph
	}
	for i, email := range doc.Contact.Emails {
		ph := fmt.Sprintf(emailPlaceholderFmt, m.PersonID, i+1)
		m.Emails[ph] = email
		doc.Contact.Emails[i] = ph
	}
	if doc.Contact.Organization != "" {
		ph := a.orgPlaceholder(doc.Contact.Organization)
		m.Organizations[ph] = doc.Contact.Organization
		doc.Contact.Organization = ph
	}
	for _, addr := range doc.Contact.Addresses {
		ph := fmt.Sprintf(addressPlaceholder, a.addrID(addr))
		m.Addresses[ph] = addr
	}
	doc.Contact.Addresses = nil

	a.anonymizeInsights(&doc.Metadata, m)

	for i := range doc.Messages {
		doc.Messages[i].Content = a.anonymizeContent(doc.Messages[i].Content, contactName, m)
	}

	return m, nil
}

// AnonymizeRecent rewrites a recent-interactions document using the mapping
// already produced for the same contact, so placeholders agree across both
// artifacts. No-op when the mapping is nil.
func (a *Anonymizer) AnonymizeRecent(doc *RecentInteractionsDocument, m *PrivacyMapping) {
	if !a.enabled || m == nil {
		return
	}

	doc.Contact.Name = m.PersonPlaceholder
	for i, phone := range doc.Contact.PhoneNumbers {
		if ph := findPlaceholder(m.Phones, phone); ph != "" {
			doc.Contact.PhoneNumbers[i] = ph
		}
	}
	for i, email := range doc.Contact.Emails {
		if ph := findPlaceholder(m.Emails, email); ph != "" {
			doc.Contact.Emails[i] = ph
		}
	}
	if doc.Contact.Organization != "" {
		if ph := findPlaceholder(m.Organizations, doc.Contact.Organization); ph != "" {
			doc.Contact.Organization = ph
		}
	}
	doc.Contact.Addresses = nil

	for i := range doc.Messages {
		doc.Messages[i].Content = a.anonymizeContent(doc.Messages[i].Content, m.Name, m)
	}
}

// anonymizeInsights swaps real identifiers out of per-identity usage stats.
func (a *Anonymizer) anonymizeInsights(in *ConversationInsights, m *PrivacyMapping) {
	if in.MostActiveIdentity != "" {
		in.MostActiveIdentity = a.identifierPlaceholder(in.MostActiveIdentity, m)
	}
	if len(in.IdentityUsage) > 0 {
		usage := make(map[string]int, len(in.IdentityUsage))
		for id, count := range in.IdentityUsage {
			usage[a.identifierPlaceholder(id, m)] = count
		}
		in.IdentityUsage = usage
	}
}

// identifierPlaceholder resolves a phone or email identifier to its existing
// placeholder, minting a new one when the identifier was not on the card.
func (a *Anonymizer) identifierPlaceholder(id string, m *PrivacyMapping) string {
	if ph := findPlaceholder(m.Phones, id); ph != "" {
		return ph
	}
	if ph := findPlaceholder(m.Emails, id); ph != "" {
		return ph
	}
	if looksLikeEmail(id) {
		ph := fmt.Sprintf(emailPlaceholderFmt, m.PersonID, len(m.Emails)+1)
		m.Emails[ph] = id
		return ph
	}
	ph := fmt.Sprintf(phonePlaceholderFmt, m.PersonID, len(m.Phones)+1)
	m.Phones[ph] = id
	return ph
}

func (a *Anonymizer) anonymizeContent(content, contactName string, m *PrivacyMapping) string {
	if content == "" {
		return content
	}

	// Known identifiers go first: a first name can occur inside an email
	// address, and replacing the name first would corrupt the address.
	for ph, phone := range m.Phones {
		content = strings.ReplaceAll(content, phone, ph)
	}
	for ph, email := range m.Emails {
		content = strings.ReplaceAll(content, email, ph)
	}

	content = replaceNameInsensitive(content, contactName, m.PersonPlaceholder)
	if first := firstName(contactName); first != "" && first != contactName {
		content = replaceWordInsensitive(content, first, m.PersonPlaceholder)
	}

	for ph, org := range m.Organizations {
		if len(org) > 2 {
			content = strings.ReplaceAll(content, org, ph)
		}
	}

	content = a.replacePhoneMatches(content, m)
	content = a.replaceEmailMatches(content, m)
	content = a.replaceSocialMatches(content, m)
	content = a.replaceCredentials(content, m)
	return content
}

func (a *Anonymizer) replacePhoneMatches(content string, m *PrivacyMapping) string {
	for _, match := range phoneInContent.FindAllString(content, -1) {
		if strings.Contains(match, "[[") || knownFragment(m.Phones, match) {
			continue
		}
		ph := fmt.Sprintf(phonePlaceholderFmt, m.PersonID, len(m.Phones)+1)
		m.Phones[ph] = match
		content = strings.ReplaceAll(content, match, ph)
	}
	return content
}

func (a *Anonymizer) replaceEmailMatches(content string, m *PrivacyMapping) string {
	for _, pattern := range []*regexp.Regexp{emailInContent, partialEmailInContent} {
		for _, match := range pattern.FindAllString(content, -1) {
			if knownFragment(m.Emails, match) {
				continue
			}
			ph := fmt.Sprintf(emailPlaceholderFmt, m.PersonID, len(m.Emails)+1)
			m.Emails[ph] = match
			content = strings.ReplaceAll(content, match, ph)
		}
	}
	return content
}

func (a *Anonymizer) replaceSocialMatches(content string, m *PrivacyMapping) string {
	for _, pattern := range socialLinkPatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			ph := a.socialPlaceholder(match)
			m.SocialMedia[ph] = match
			content = strings.ReplaceAll(content, match, ph)
		}
	}
	for _, pattern := range usernameContextPatterns {
		for _, groups := range pattern.FindAllStringSubmatch(content, -1) {
			handle := groups[len(groups)-1]
			if handle == "" {
				continue
			}
			ph := a.socialPlaceholder(handle)
			m.SocialMedia[ph] = handle
			content = strings.ReplaceAll(content, handle, ph)
		}
	}
	return content
}

func (a *Anonymizer) replaceCredentials(content string, m *PrivacyMapping) string {
	for _, pattern := range passwordPatterns {
		for _, groups := range pattern.FindAllStringSubmatch(content, -1) {
			secret := groups[len(groups)-1]
			if secret == "" || strings.Contains(secret, "[[") {
				continue
			}
			key := fmt.Sprintf("%s_%d", credsPlaceholder, len(m.Credentials)+1)
			m.Credentials[key] = "Password redacted for security"
			content = strings.ReplaceAll(content, secret, credsPlaceholder)
		}
	}
	return content
}

// checkCollisions rejects documents that already contain placeholder-shaped
// text. Anonymizing such a document would make restoration ambiguous.
func (a *Anonymizer) checkCollisions(doc *ConversationDocument, personPh string) error {
	for _, msg := range doc.Messages {
		if strings.Contains(msg.Content, personPh) || placeholderShaped.MatchString(msg.Content) {
			return fmt.Errorf("AnonymizeConversation: source content for %q already contains placeholder text", doc.Contact.Name)
		}
	}
	return nil
}

var placeholderShaped = regexp.MustCompile(`\[\[(?:PERSON|PHONE|EMAIL|ORGANIZATION|SOCIAL_MEDIA|ADDRESS|CREDENTIALS)[^\]]*\]\]`)

func findPlaceholder(mapping map[string]string, value string) string {
	for ph, v := range mapping {
		if v == value {
			return ph
		}
	}
	return ""
}

func knownFragment(mapping map[string]string, match string) bool {
	for _, v := range mapping {
		if strings.Contains(v, match) || strings.Contains(match, v) {
			return true
		}
	}
	return false
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	if len([]rune(fields[0])) < 2 {
		return ""
	}
	return fields[0]
}

// replaceNameInsensitive substitutes every case-insensitive occurrence of name.
func replaceNameInsensitive(content, name, replacement string) string {
	if name == "" {
		return content
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name))
	if err != nil {
		return content
	}
	return re.ReplaceAllLiteralString(content, replacement)
}

// replaceWordInsensitive is like replaceNameInsensitive but bounded to whole
// words, so a first name never matches inside another word.
func replaceWordInsensitive(content, word, replacement string) string {
	if word == "" {
		return content
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return content
	}
	return re.ReplaceAllLiteralString(content, replacement)
}
