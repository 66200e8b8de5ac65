package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from MSGATLAS_* environment variables first, then
// overridden by flags.
type Config struct {
	ContactsPath string `envconfig:"CONTACTS"`
	MessagesDir  string `envconfig:"MESSAGES_DIR"`
	OutputDir    string `envconfig:"OUTPUT_DIR" default:"data"`

	MinMessages        int    `envconfig:"MIN_MESSAGES" default:"10"`
	RecentCount        int    `envconfig:"RECENT_COUNT" default:"75"`
	GroupWindowMinutes int    `envconfig:"GROUP_WINDOW_MINUTES" default:"10"`
	RecencyDays        int    `envconfig:"RECENCY_DAYS" default:"7"`
	SelfLabel          string `envconfig:"SELF_LABEL" default:"Me"`

	NoPrivacy bool `envconfig:"NO_PRIVACY"`
	Pretty    bool `envconfig:"PRETTY"`
	Verbose   bool `envconfig:"VERBOSE"`
}

func (c Config) Validate() error {
	if c.ContactsPath == "" {
		return errors.New("missing -contacts")
	}
	if c.MessagesDir == "" {
		return errors.New("missing -messages")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	if c.MinMessages < 0 {
		return errors.New("min-messages must be >= 0")
	}
	if c.RecentCount <= 0 {
		return errors.New("recent-count must be > 0")
	}
	if c.GroupWindowMinutes <= 0 {
		return errors.New("group-window-minutes must be > 0")
	}
	if c.RecencyDays <= 0 {
		return errors.New("recency-days must be > 0")
	}
	return nil
}

func defaultConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("msgatlas", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := defaultConfig()
	if err != nil {
		return Config{}, err
	}
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ContactsPath, "contacts", cfg.ContactsPath, "Path to the exported contacts .vcf file")
	fs.StringVar(&cfg.MessagesDir, "messages", cfg.MessagesDir, "Directory of per-conversation .txt message exports")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Output directory for generated artifacts")

	fs.IntVar(&cfg.MinMessages, "min-messages", cfg.MinMessages, "Minimum merged messages before a contact gets conversation artifacts")
	fs.IntVar(&cfg.RecentCount, "recent-count", cfg.RecentCount, "Number of trailing messages in the recent-interactions file")
	fs.IntVar(&cfg.GroupWindowMinutes, "group-window-minutes", cfg.GroupWindowMinutes, "Window in minutes for merging consecutive same-sender messages")
	fs.IntVar(&cfg.RecencyDays, "recency-days", cfg.RecencyDays, "Days within which a date range ends in 'present'")
	fs.StringVar(&cfg.SelfLabel, "self-label", cfg.SelfLabel, "Sender label the message export uses for the device owner")

	fs.BoolVar(&cfg.NoPrivacy, "no-privacy", cfg.NoPrivacy, "Disable placeholder anonymization of LLM artifacts")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON outputs")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Clean("") would turn an unset path into "." and defeat Validate.
	if cfg.ContactsPath != "" {
		cfg.ContactsPath = filepath.Clean(cfg.ContactsPath)
	}
	if cfg.MessagesDir != "" {
		cfg.MessagesDir = filepath.Clean(cfg.MessagesDir)
	}
	if cfg.OutputDir != "" {
		cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	}
	return cfg, nil
}
