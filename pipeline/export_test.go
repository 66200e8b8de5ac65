package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func buildExportRaw(start time.Time, turns [][2]string) string {
	var b strings.Builder
	for i, turn := range turns {
		ts := start.Add(time.Duration(i) * time.Minute)
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", ts.Format("Jan 2, 2006 3:04:05 PM"), turn[0], turn[1])
	}
	return b.String()
}

func exportFixture() ([]ContactCard, []ExportUnit) {
	cards := []ContactCard{
		{Name: "Alice Smith", Phones: []PhoneNumber{{Number: "+15551234567", Original: "(555) 123-4567"}}},
		{Name: "Bob Jones", Emails: []EmailAddress{{Address: "bob@example.com"}}},
	}

	start := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)

	var aliceTurns [][2]string
	for i := 0; i < 13; i++ {
		sender := "Me"
		if i%2 == 1 {
			sender = "+1 (555) 123-4567"
		}
		aliceTurns = append(aliceTurns, [2]string{sender, fmt.Sprintf("planning update number %d for the trip", i)})
	}
	// Two metadata-only turns that must not become messages.
	aliceTurns = append(aliceTurns,
		[2]string{"Me", `Liked "planning update number 12 for the trip"`},
		[2]string{"+1 (555) 123-4567", "(Delivered quietly)"},
	)

	var bobTurns [][2]string
	for i := 0; i < 5; i++ {
		bobTurns = append(bobTurns, [2]string{"Me", fmt.Sprintf("short thread message %d", i)})
	}

	units := []ExportUnit{
		{Identifier: "+15551234567", Raw: buildExportRaw(start, aliceTurns)},
		{Identifier: "bob@example.com", Raw: buildExportRaw(start, bobTurns)},
		{Identifier: "Family 🎉", Raw: buildExportRaw(start, [][2]string{{"Me", "group things"}})},
		{Identifier: "+19998887777", Raw: buildExportRaw(start, [][2]string{{"Me", "stranger things"}})},
	}
	return cards, units
}

func TestRunExport(t *testing.T) {
	t.Parallel()

	cards, units := exportFixture()
	outDir := t.TempDir()

	result, err := RunExport(context.Background(), cards, units, ExportOptions{
		OutputDir:      outDir,
		PrivacyEnabled: true,
		Pretty:         true,
		Now:            time.Date(2025, time.January, 16, 9, 0, 0, 0, time.UTC),
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RunExport: %v", err)
	}

	if result.Exported != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("tally=%d/%d/%d, want 1 exported, 1 skipped, 0 failed", result.Exported, result.Skipped, result.Failed)
	}
	if result.GroupUnits != 1 {
		t.Fatalf("GroupUnits=%d, want 1", result.GroupUnits)
	}
	if result.UnmatchedUnits != 1 {
		t.Fatalf("UnmatchedUnits=%d, want 1", result.UnmatchedUnits)
	}
	if result.RunID == "" {
		t.Fatal("missing run ID")
	}

	aliceDir := filepath.Join(outDir, "_llm_ready", "Alice Smith")
	for _, name := range []string{"contact.json", "conversation_llm.json", "conversation_recent_interactions.json", "privacy_mapping.json", "messages.txt"} {
		if _, err := os.Stat(filepath.Join(aliceDir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "_llm_ready", "Bob Jones")); !os.IsNotExist(err) {
		t.Fatal("below-threshold contact must not get artifacts")
	}

	var convo ConversationDocument
	readJSON(t, filepath.Join(aliceDir, "conversation_llm.json"), &convo)
	if convo.Contact.Name != "[[PERSON_1]]" {
		t.Fatalf("Contact.Name=%q, want anonymized", convo.Contact.Name)
	}
	if convo.Metadata.TotalMessages != 13 {
		t.Fatalf("TotalMessages=%d, want 13 (metadata-only turns dropped)", convo.Metadata.TotalMessages)
	}
	for _, m := range convo.Messages {
		if strings.Contains(m.Content, "Alice") {
			t.Fatalf("name leaked: %q", m.Content)
		}
	}

	var withMessages []ContactRecord
	readJSON(t, filepath.Join(outDir, "_summary", "contacts_with_messages.json"), &withMessages)
	if len(withMessages) != 1 || withMessages[0].Name != "Alice Smith" {
		t.Fatalf("contacts_with_messages=%+v", withMessages)
	}
	if withMessages[0].Insights == nil || withMessages[0].Insights.TotalMessages != 13 {
		t.Fatalf("Insights=%+v", withMessages[0].Insights)
	}
	if withMessages[0].LastMessage == nil {
		t.Fatal("missing last message info")
	}

	var all []ContactRecord
	readJSON(t, filepath.Join(outDir, "_summary", "all_contacts.json"), &all)
	if len(all) != 2 {
		t.Fatalf("all_contacts=%d records, want 2", len(all))
	}

	var index masterIndex
	readJSON(t, filepath.Join(outDir, "_llm_ready", "master_index.json"), &index)
	if index.RunID != result.RunID || index.ExportedCount != 1 || !index.PrivacyEnabled {
		t.Fatalf("master index=%+v", index)
	}
	if len(index.Contacts) != 1 || index.Contacts[0].Name != "[[PERSON_1]]" {
		t.Fatalf("index contacts=%+v", index.Contacts)
	}

	var master masterPrivacyMapping
	readJSON(t, filepath.Join(outDir, "_llm_ready", "master_privacy_mapping.json"), &master)
	if len(master.Contacts) != 1 || master.Contacts[0].Name != "Alice Smith" {
		t.Fatalf("master privacy=%+v", master.Contacts)
	}
	if master.GlobalMappings["global_person_mapping"]["Alice Smith"] != 1 {
		t.Fatalf("global mappings=%+v", master.GlobalMappings)
	}
}

func TestRunExport_PrivacyDisabled(t *testing.T) {
	t.Parallel()

	cards, units := exportFixture()
	outDir := t.TempDir()

	_, err := RunExport(context.Background(), cards, units, ExportOptions{
		OutputDir: outDir,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RunExport: %v", err)
	}

	aliceDir := filepath.Join(outDir, "_llm_ready", "Alice Smith")
	var convo ConversationDocument
	readJSON(t, filepath.Join(aliceDir, "conversation_llm.json"), &convo)
	if convo.Contact.Name != "Alice Smith" {
		t.Fatalf("Contact.Name=%q, want real name without privacy", convo.Contact.Name)
	}
	if _, err := os.Stat(filepath.Join(aliceDir, "privacy_mapping.json")); !os.IsNotExist(err) {
		t.Fatal("privacy mapping must not exist when disabled")
	}
	if _, err := os.Stat(filepath.Join(outDir, "_llm_ready", "master_privacy_mapping.json")); !os.IsNotExist(err) {
		t.Fatal("master privacy mapping must not exist when disabled")
	}
}

func TestRunExport_ThresholdRespectsOption(t *testing.T) {
	t.Parallel()

	cards, units := exportFixture()
	outDir := t.TempDir()

	result, err := RunExport(context.Background(), cards, units, ExportOptions{
		OutputDir:       outDir,
		MinMessageCount: 5,
		Logger:          zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RunExport: %v", err)
	}
	if result.Exported != 2 || result.Skipped != 0 {
		t.Fatalf("tally=%d exported/%d skipped, want both contacts exported at threshold 5", result.Exported, result.Skipped)
	}
	if _, err := os.Stat(filepath.Join(outDir, "_llm_ready", "Bob Jones", "conversation_llm.json")); err != nil {
		t.Fatalf("Bob artifacts missing at lower threshold: %v", err)
	}
}

func TestRunExport_Cancelled(t *testing.T) {
	t.Parallel()

	cards, units := exportFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunExport(ctx, cards, units, ExportOptions{OutputDir: t.TempDir(), Logger: zerolog.Nop()})
	if err == nil {
		t.Fatal("want error for cancelled context")
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
