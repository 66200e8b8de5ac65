package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/karstware/msgatlas/pipeline"
	"github.com/karstware/msgatlas/pipeline/fileutils"
	"github.com/karstware/msgatlas/pipeline/provider"
)

// conversationAnalysis is the structured output requested from the model.
type conversationAnalysis struct {
	RelationshipSummary string   `json:"relationship_summary"`
	CommunicationTone   string   `json:"communication_tone"`
	RecurringTopics     []string `json:"recurring_topics"`
	SuggestedReplyStyle string   `json:"suggested_reply_style"`
	NotableObservations []string `json:"notable_observations"`
}

var analysisSchema = provider.GenerateSchema[conversationAnalysis]()

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := run(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is not set")
	}

	var convo pipeline.ConversationDocument
	if err := fileutils.ReadJSONFile(filepath.Join(cfg.ContactDir, "conversation_llm.json"), &convo); err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	var recent pipeline.RecentInteractionsDocument
	if err := fileutils.ReadJSONFile(filepath.Join(cfg.ContactDir, "conversation_recent_interactions.json"), &recent); err != nil {
		return fmt.Errorf("load recent interactions: %w", err)
	}

	style := pipeline.AnalyzeStyle(recent)

	input, err := buildAnalysisInput(convo, style, cfg.MaxMessages)
	if err != nil {
		return err
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "ConversationAnalysis",
			Schema:      analysisSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Conversation analysis JSON"),
			Type:        "json_schema",
		},
	}
	params := responses.ResponseNewParams{
		Model:           cfg.Model,
		MaxOutputTokens: openai.Int(1500),
		Instructions:    openai.String(analysisInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := provider.CallWithRetry(ctx, &client, params)
	if err != nil {
		return fmt.Errorf("analysis request: %w", err)
	}

	var analysis conversationAnalysis
	if err := fileutils.DecodeModelJSON(resp.OutputText(), &analysis); err != nil {
		return fmt.Errorf("unmarshal analysis: %w", err)
	}

	out := struct {
		Contact  string                `json:"contact"`
		Style    pipeline.StyleProfile `json:"style_profile"`
		Analysis conversationAnalysis  `json:"analysis"`
	}{
		Contact:  convo.Contact.Name,
		Style:    style,
		Analysis: analysis,
	}

	outPath := filepath.Join(cfg.ContactDir, "conversation_analysis.json")
	if err := fileutils.WriteJSONFileAtomic(outPath, out, cfg.Pretty); err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}
	fmt.Fprintln(os.Stdout, "wrote", outPath)
	return nil
}

// buildAnalysisInput packs the conversation document and local style profile
// into the user turn, capping the message list so the prompt stays bounded.
func buildAnalysisInput(convo pipeline.ConversationDocument, style pipeline.StyleProfile, maxMessages int) (string, error) {
	if maxMessages > 0 && len(convo.Messages) > maxMessages {
		convo.Messages = convo.Messages[len(convo.Messages)-maxMessages:]
	}

	convoJSON, err := json.Marshal(convo)
	if err != nil {
		return "", fmt.Errorf("marshal conversation: %w", err)
	}
	styleJSON, err := json.Marshal(style)
	if err != nil {
		return "", fmt.Errorf("marshal style profile: %w", err)
	}

	return "CONVERSATION:\n" + string(convoJSON) + "\n\nUSER STYLE PROFILE:\n" + string(styleJSON), nil
}
