package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/karstware/msgatlas/pipeline"
)

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

	logger := newLogger(cfg.Verbose)
	ctx := context.Background()

	cards, err := loadContacts(cfg.ContactsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ContactsPath).Msg("loading contacts failed")
	}
	logger.Info().Int("contacts", len(cards)).Msg("contacts loaded")

	units, err := pipeline.LoadExportUnits(cfg.MessagesDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.MessagesDir).Msg("loading message exports failed")
	}
	logger.Info().Int("units", len(units)).Msg("message exports loaded")

	result, err := pipeline.RunExport(ctx, cards, units, pipeline.ExportOptions{
		OutputDir:       cfg.OutputDir,
		MinMessageCount: cfg.MinMessages,
		RecentCount:     cfg.RecentCount,
		GroupWindow:     time.Duration(cfg.GroupWindowMinutes) * time.Minute,
		RecencyWindow:   time.Duration(cfg.RecencyDays) * 24 * time.Hour,
		SelfLabel:       cfg.SelfLabel,
		PrivacyEnabled:  !cfg.NoPrivacy,
		Pretty:          cfg.Pretty,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("export failed")
	}

	fmt.Fprintf(os.Stdout, "run %s: %d exported, %d skipped, %d failed -> %s\n",
		result.RunID, result.Exported, result.Skipped, result.Failed, result.OutputDir)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Str("service", "contact-export").
		Timestamp().
		Logger()
}

func loadContacts(path string) ([]pipeline.ContactCard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.ParseContactCards(f)
}
