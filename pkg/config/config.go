// Package config loads the pagenorm configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Inputs            []string `yaml:"inputs" toml:"inputs"`
	InputStage        string   `yaml:"input_stage" toml:"input_stage"`
	DictsDir          string   `yaml:"dicts_dir" toml:"dicts_dir"`
	DomainDictionary  string   `yaml:"domain_dictionary" toml:"domain_dictionary"`
	GeneralDictionary string   `yaml:"general_dictionary" toml:"general_dictionary"`
	Lexicon           Lexicon  `yaml:"lexicon" toml:"lexicon"`
	Rules             string   `yaml:"rules" toml:"rules"`
	AbbreviationLog   string   `yaml:"abbreviation_log" toml:"abbreviation_log"`
	AuditDB           string   `yaml:"audit_db" toml:"audit_db"`
	Log               Log      `yaml:"log" toml:"log"`
}

// Lexicon locates the lemma/superlemma table.
type Lexicon struct {
	Path     string  `yaml:"path" toml:"path"`
	Cache    string  `yaml:"cache" toml:"cache"`
	Encoding string  `yaml:"encoding" toml:"encoding"`
	Columns  Columns `yaml:"columns" toml:"columns"`
}

// Columns names the lexicon header fields.
type Columns struct {
	WordForm   string `yaml:"word_form" toml:"word_form"`
	Superlemma string `yaml:"superlemma" toml:"superlemma"`
	Lemma      string `yaml:"lemma" toml:"lemma"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		InputStage:      "base",
		DictsDir:        "dicts",
		Lexicon:         Lexicon{Path: "resources/frankfurt_latin_lexicon.txt"},
		AbbreviationLog: "abbreviations_log.json",
		Log:             Log{Level: "info", Format: "text"},
	}
}

// Load reads the file at path on top of Default. YAML is assumed unless the
// extension is .toml. A missing file yields the defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that have a closed set of choices.
func (c *Config) Validate() error {
	if c.InputStage == "" {
		return fmt.Errorf("input_stage must not be empty")
	}
	if strings.ContainsAny(c.InputStage, `/\`) {
		return fmt.Errorf("input_stage %q must be a single path segment", c.InputStage)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
