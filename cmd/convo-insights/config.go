package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ContactDir  string `envconfig:"CONTACT_DIR"`
	Model       string `envconfig:"MODEL" default:"gpt-5-mini"`
	MaxMessages int    `envconfig:"MAX_MESSAGES" default:"400"`
	Pretty      bool   `envconfig:"PRETTY"`
}

func (c Config) Validate() error {
	if c.ContactDir == "" {
		return errors.New("missing -contact-dir")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.MaxMessages < 0 {
		return errors.New("max-messages must be >= 0")
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := envconfig.Process("msgatlas", &cfg); err != nil {
		return Config{}, err
	}
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ContactDir, "contact-dir", cfg.ContactDir, "Contact artifact directory containing conversation_llm.json")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model for the analysis (uses OPENAI_API_KEY)")
	fs.IntVar(&cfg.MaxMessages, "max-messages", cfg.MaxMessages, "Max trailing messages sent to the model (0 = all)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the analysis output")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	// Clean("") would turn an unset path into "." and defeat Validate.
	if cfg.ContactDir != "" {
		cfg.ContactDir = filepath.Clean(cfg.ContactDir)
	}
	return cfg, nil
}
