package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/karstware/msgatlas/pipeline/fileutils"
)

// Default thresholds for an export run.
const (
	DefaultMinMessageCount = 10
	DefaultSelfLabel       = "Me"
)

// Subdirectories of the output root holding cross-contact artifacts.
const (
	llmReadyDir = "_llm_ready"
	summaryDir  = "_summary"
)

// ExportOptions configures one export run. The zero value is usable except
// for OutputDir; unset fields fall back to the package defaults.
type ExportOptions struct {
	OutputDir string

	// MinMessageCount is the threshold below which a contact gets no
	// conversation artifacts, only a summary record.
	MinMessageCount int

	// RecentCount bounds the recent-interactions window.
	RecentCount int

	// GroupWindow is the consecutive-sender merge window.
	GroupWindow time.Duration

	// RecencyWindow controls when a date range ends in "present".
	RecencyWindow time.Duration

	// SelfLabel is the sender line the export tool writes for the device
	// owner.
	SelfLabel string

	// PrivacyEnabled turns placeholder anonymization on for every LLM-facing
	// artifact.
	PrivacyEnabled bool

	// Pretty indents the JSON artifacts.
	Pretty bool

	// Now anchors date-range recency; zero means wall clock.
	Now time.Time

	Logger zerolog.Logger
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.MinMessageCount <= 0 {
		o.MinMessageCount = DefaultMinMessageCount
	}
	if o.RecentCount <= 0 {
		o.RecentCount = DefaultRecentCount
	}
	if o.GroupWindow <= 0 {
		o.GroupWindow = defaultGroupWindow
	}
	if o.RecencyWindow <= 0 {
		o.RecencyWindow = defaultRecencyWindow
	}
	if o.SelfLabel == "" {
		o.SelfLabel = DefaultSelfLabel
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// RunResult tallies one export run.
type RunResult struct {
	RunID          string
	OutputDir      string
	TotalContacts  int
	Exported       int
	Skipped        int
	Failed         int
	TotalUnits     int
	GroupUnits     int
	UnmatchedUnits int
}

type masterIndexEntry struct {
	Name         string `json:"name"`
	Folder       string `json:"folder"`
	MessageCount int    `json:"message_count"`
	DateRange    string `json:"date_range"`
}

type masterIndex struct {
	RunID          string             `json:"run_id"`
	GeneratedAt    string             `json:"generated_at"`
	PrivacyEnabled bool               `json:"privacy_enabled"`
	ContactCount   int                `json:"contact_count"`
	ExportedCount  int                `json:"exported_count"`
	Contacts       []masterIndexEntry `json:"contacts"`
}

type conversationSummary struct {
	Name     string               `json:"name"`
	Folder   string               `json:"folder"`
	Insights ConversationInsights `json:"conversation_insights"`
}

type masterPrivacyMapping struct {
	RunID          string                    `json:"run_id"`
	GeneratedAt    string                    `json:"generated_at"`
	GlobalMappings map[string]map[string]int `json:"global_mappings"`
	Contacts       []PrivacyMapping          `json:"contacts"`
}

// RunExport executes the full pipeline: build the identity registry from the
// contact cards, route export units to contacts, and produce per-contact plus
// master artifacts under opts.OutputDir.
//
// Per-contact failures are isolated: they are logged, counted, and never
// abort the run. The returned error covers only run-level problems (context
// cancellation, master artifact writes).
func RunExport(ctx context.Context, cards []ContactCard, units []ExportUnit, opts ExportOptions) (RunResult, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	result := RunResult{
		RunID:         uuid.NewString(),
		OutputDir:     opts.OutputDir,
		TotalContacts: len(cards),
		TotalUnits:    len(units),
	}

	registry := NewIdentityRegistry()
	for _, card := range cards {
		ids := append(card.CanonicalPhones(), card.EmailStrings()...)
		registry.Register(card.Name, ids...)
	}

	unitsByContact := make(map[string][]ExportUnit)
	for _, u := range units {
		if ClassifyExportUnit(u.Identifier) == ClassGroup {
			result.GroupUnits++
			log.Debug().Str("unit", u.Identifier).Msg("excluding group conversation")
			continue
		}
		name, ok := registry.Lookup(u.Identifier)
		if !ok {
			result.UnmatchedUnits++
			log.Debug().Str("unit", u.Identifier).Msg("no contact matches export unit")
			continue
		}
		unitsByContact[name] = append(unitsByContact[name], u)
	}

	anonymizer := NewAnonymizer(opts.PrivacyEnabled)

	var (
		allRecords     []ContactRecord
		withMessages   []ContactRecord
		indexEntries   []masterIndexEntry
		summaries      []conversationSummary
		privacyRecords []PrivacyMapping
	)

	for _, card := range cards {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("RunExport: %w", err)
		}

		record := buildContactRecord(card)

		merged := mergeContactUnits(unitsByContact[card.Name], opts.SelfLabel)
		if len(merged) < opts.MinMessageCount {
			result.Skipped++
			allRecords = append(allRecords, record)
			log.Debug().Str("contact", card.Name).Int("messages", len(merged)).
				Msg("below message threshold, summary only")
			continue
		}

		insights := AnalyzeConversation(merged, AnalyticsOptions{Now: opts.Now, RecencyWindow: opts.RecencyWindow})
		record.Insights = &insights
		record.LastMessage = BuildLastMessageInfo(merged)

		optimized := OptimizeForLLM(merged, OptimizeOptions{GroupWindow: opts.GroupWindow})
		convoDoc := ConversationDocument{
			Contact:  card.Summary(),
			Metadata: insights,
			Messages: toDocMessages(optimized),
		}
		recentDoc := BuildRecentInteractionsDocument(card.Summary(), merged, opts.RecentCount, opts.Now)

		mapping, err := anonymizer.AnonymizeConversation(&convoDoc, card.Name)
		if err != nil {
			// The document is untouched when anonymization rejects it; ship it
			// without placeholders rather than write an ambiguous mapping or
			// lose the contact.
			log.Warn().Err(err).Str("contact", card.Name).Msg("anonymization skipped, exporting without placeholders")
			mapping = nil
		}
		anonymizer.AnonymizeRecent(&recentDoc, mapping)

		folder := fileutils.SanitizePathComponent(card.Name)
		contactDir := filepath.Join(opts.OutputDir, llmReadyDir, folder)

		record.Artifacts = &ArtifactPaths{
			Conversation:       filepath.Join(llmReadyDir, folder, "conversation_llm.json"),
			RecentInteractions: filepath.Join(llmReadyDir, folder, "conversation_recent_interactions.json"),
			PlainText:          filepath.Join(llmReadyDir, folder, "messages.txt"),
		}
		if mapping != nil {
			record.Artifacts.PrivacyMapping = filepath.Join(llmReadyDir, folder, "privacy_mapping.json")
		}

		if err := writeContactArtifacts(contactDir, record, convoDoc, recentDoc, mapping, merged, opts.Pretty); err != nil {
			result.Failed++
			allRecords = append(allRecords, record)
			log.Error().Err(err).Str("contact", card.Name).Msg("artifact write failed")
			continue
		}

		displayName := card.Name
		if mapping != nil {
			displayName = mapping.PersonPlaceholder
			privacyRecords = append(privacyRecords, *mapping)
		}
		indexEntries = append(indexEntries, masterIndexEntry{
			Name:         displayName,
			Folder:       folder,
			MessageCount: insights.TotalMessages,
			DateRange:    insights.DateRange,
		})
		summaries = append(summaries, conversationSummary{
			Name:     displayName,
			Folder:   folder,
			Insights: convoDoc.Metadata,
		})

		result.Exported++
		allRecords = append(allRecords, record)
		withMessages = append(withMessages, record)
		log.Info().Str("contact", card.Name).Int("messages", insights.TotalMessages).
			Int("optimized", len(convoDoc.Messages)).Msg("contact exported")
	}

	if err := writeMasterArtifacts(opts, result, anonymizer, allRecords, withMessages, indexEntries, summaries, privacyRecords); err != nil {
		return result, err
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("contacts", result.TotalContacts).
		Int("exported", result.Exported).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("group_units", result.GroupUnits).
		Int("unmatched_units", result.UnmatchedUnits).
		Msg("export complete")

	return result, nil
}

// mergeContactUnits parses every export unit routed to one contact and merges
// them into a single ordered timeline. The unit's canonical identifier rides
// along as message provenance.
func mergeContactUnits(units []ExportUnit, selfLabel string) []Message {
	sequences := make([][]Message, 0, len(units))
	for _, u := range units {
		sequences = append(sequences, ParseMessages(u.Raw, selfLabel, CanonicalIdentifier(u.Identifier)))
	}
	return MergeSequences(sequences...)
}

func buildContactRecord(card ContactCard) ContactRecord {
	record := ContactRecord{Name: card.Name}

	if len(card.Phones) > 0 || len(card.Emails) > 0 {
		record.Contact = &ContactDetails{
			PhoneNumbers: append([]PhoneNumber(nil), card.Phones...),
			Emails:       append([]EmailAddress(nil), card.Emails...),
		}
	}
	if card.Birthday != "" {
		record.Personal = &PersonalInfo{Birthday: card.Birthday}
	}
	if card.Organization != "" || card.Title != "" {
		record.Professional = &ProfessionalInfo{Organization: card.Organization, Title: card.Title}
	}
	if len(card.URLs) > 0 {
		record.Online = &OnlinePresence{URLs: append([]ProfileURL(nil), card.URLs...)}
	}
	if card.Note != "" || len(card.Addresses) > 0 {
		record.Additional = &AdditionalInfo{
			Note:      card.Note,
			Addresses: append([]string(nil), card.Addresses...),
		}
	}
	return record
}

func toDocMessages(msgs []Message) []DocMessage {
	out := make([]DocMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, DocMessage{
			Timestamp: m.Timestamp.Format("2006-01-02 15:04:05"),
			Sender:    m.Sender,
			Content:   m.Content,
		})
	}
	return out
}

func writeContactArtifacts(dir string, record ContactRecord, convo ConversationDocument, recent RecentInteractionsDocument, mapping *PrivacyMapping, merged []Message, pretty bool) error {
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, "contact.json"), record, pretty); err != nil {
		return fmt.Errorf("writeContactArtifacts: contact record: %w", err)
	}
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, "conversation_llm.json"), convo, pretty); err != nil {
		return fmt.Errorf("writeContactArtifacts: conversation: %w", err)
	}
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, "conversation_recent_interactions.json"), recent, pretty); err != nil {
		return fmt.Errorf("writeContactArtifacts: recent interactions: %w", err)
	}
	if mapping != nil {
		if err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, "privacy_mapping.json"), mapping, pretty); err != nil {
			return fmt.Errorf("writeContactArtifacts: privacy mapping: %w", err)
		}
	}
	if err := fileutils.WriteFileAtomicSameDir(filepath.Join(dir, "messages.txt"), renderPlainText(merged), 0o644); err != nil {
		return fmt.Errorf("writeContactArtifacts: plain text: %w", err)
	}
	return nil
}

// renderPlainText produces the human-readable timeline, one message per line.
func renderPlainText(msgs []Message) []byte {
	var b []byte
	for _, m := range msgs {
		line := m.Timestamp.Format("2006-01-02 15:04:05") + " | " + m.Sender + " | " + fileutils.SanitizeNewlines(m.Content)
		b = append(b, line...)
		b = append(b, '\n')
	}
	return b
}

func writeMasterArtifacts(opts ExportOptions, result RunResult, anonymizer *Anonymizer, allRecords, withMessages []ContactRecord, indexEntries []masterIndexEntry, summaries []conversationSummary, privacyRecords []PrivacyMapping) error {
	generatedAt := opts.Now.Format(time.RFC3339)

	index := masterIndex{
		RunID:          result.RunID,
		GeneratedAt:    generatedAt,
		PrivacyEnabled: anonymizer.Enabled(),
		ContactCount:   result.TotalContacts,
		ExportedCount:  result.Exported,
		Contacts:       indexEntries,
	}
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(opts.OutputDir, llmReadyDir, "master_index.json"), index, opts.Pretty); err != nil {
		return fmt.Errorf("RunExport: master index: %w", err)
	}
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(opts.OutputDir, llmReadyDir, "conversation_summaries.json"), summaries, opts.Pretty); err != nil {
		return fmt.Errorf("RunExport: conversation summaries: %w", err)
	}

	if anonymizer.Enabled() {
		master := masterPrivacyMapping{
			RunID:          result.RunID,
			GeneratedAt:    generatedAt,
			GlobalMappings: anonymizer.GlobalMappings(),
			Contacts:       privacyRecords,
		}
		if err := fileutils.WriteJSONFileAtomic(filepath.Join(opts.OutputDir, llmReadyDir, "master_privacy_mapping.json"), master, opts.Pretty); err != nil {
			return fmt.Errorf("RunExport: master privacy mapping: %w", err)
		}
	}

	if err := fileutils.WriteJSONFileAtomic(filepath.Join(opts.OutputDir, summaryDir, "all_contacts.json"), allRecords, opts.Pretty); err != nil {
		return fmt.Errorf("RunExport: all contacts: %w", err)
	}
	if err := fileutils.WriteJSONFileAtomic(filepath.Join(opts.OutputDir, summaryDir, "contacts_with_messages.json"), withMessages, opts.Pretty); err != nil {
		return fmt.Errorf("RunExport: contacts with messages: %w", err)
	}
	return nil
}
