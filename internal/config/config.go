package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultRegionID is The Forge, home of Jita 4-4.
const DefaultRegionID int32 = 10000002

// PriceCommand binds a chat command to the market region it prices against.
type PriceCommand struct {
	Command  string `yaml:"command" json:"command" validate:"required"`
	Location int32  `yaml:"location" json:"location" validate:"gt=0"`
}

// SpecialField is a canned reply triggered by an exact query string.
// DirectOutput=false sends the reply and then runs the price lookup anyway.
type SpecialField struct {
	MonitoringContent string `yaml:"monitoringContent" json:"monitoringContent" validate:"required"`
	Response          string `yaml:"response" json:"response" validate:"required"`
	DirectOutput      *bool  `yaml:"directOutput,omitempty" json:"directOutput,omitempty"`
}

// Direct reports whether the canned reply replaces the price lookup.
// Unset means true.
func (f SpecialField) Direct() bool {
	return f.DirectOutput == nil || *f.DirectOutput
}

// ESIConfig holds market API transport settings.
type ESIConfig struct {
	BaseURL       string        `yaml:"baseURL" env:"ESI_BASE_URL" validate:"required,url"`
	RetryAttempts int           `yaml:"retryAttempts" env:"ESI_RETRY_ATTEMPTS" validate:"gte=1"`
	RetryDelay    time.Duration `yaml:"retryDelay" env:"ESI_RETRY_DELAY" validate:"gte=0"`
	Concurrency   int           `yaml:"concurrency" env:"ESI_CONCURRENCY" validate:"gte=1"`
	Timeout       time.Duration `yaml:"timeout" env:"ESI_TIMEOUT" validate:"gt=0"`
}

// TelegramConfig holds the chat bot settings. An empty token disables the bot.
type TelegramConfig struct {
	Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
}

// HTTPConfig holds the HTTP API settings. An empty addr disables the server.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Env   string `yaml:"env" env:"LOG_ENV" validate:"omitempty,oneof=local dev prod"`
	Level string `yaml:"level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

// Config holds application settings.
// YAML option names match the chat plugin settings format, so existing files load unchanged.
type Config struct {
	MaxSearch        int            `yaml:"maxSearch" json:"maxSearch" env:"MAX_SEARCH" validate:"gte=1"`
	PreDecompression bool           `yaml:"preDecompression" json:"preDecompression" env:"PRE_DECOMPRESSION"`
	PriceCommands    []PriceCommand `yaml:"customPriceInquiryInstructionsAndLocation" json:"customPriceInquiryInstructionsAndLocation" validate:"min=1,dive"`
	SpecialFields    []SpecialField `yaml:"customSpecialFields" json:"customSpecialFields" validate:"dive"`
	TypesPath        string         `yaml:"customTypesJsonFilePath" json:"customTypesJsonFilePath" env:"TYPES_PATH" validate:"required"`
	ReportLanguage   string         `yaml:"reportLanguage" json:"reportLanguage" env:"REPORT_LANGUAGE" validate:"oneof=zh en"`
	DBPath           string         `yaml:"dbPath" json:"-" env:"DB_PATH"`

	ESI      ESIConfig      `yaml:"esi" json:"-"`
	Telegram TelegramConfig `yaml:"telegram" json:"-"`
	HTTP     HTTPConfig     `yaml:"http" json:"-"`
	Log      LogConfig      `yaml:"log" json:"-"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		MaxSearch:        10,
		PreDecompression: true,
		PriceCommands:    []PriceCommand{{Command: "jita", Location: DefaultRegionID}},
		SpecialFields:    []SpecialField{},
		TypesPath:        "types.json.gz",
		ReportLanguage:   "zh",
		ESI: ESIConfig{
			BaseURL:       "https://esi.evetech.net/latest",
			RetryAttempts: 5,
			RetryDelay:    time.Second,
			Concurrency:   20,
			Timeout:       30 * time.Second,
		},
		Log: LogConfig{Env: "local"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the config: defaults, then the YAML file (if path is non-empty and
// exists), then .env / environment overrides with the EVE_PRICE_ prefix.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "EVE_PRICE_"}); err != nil {
		return nil, fmt.Errorf("env.Parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool, len(c.PriceCommands))
	for _, pc := range c.PriceCommands {
		if strings.ContainsAny(pc.Command, " \t/") {
			return fmt.Errorf("invalid config: command %q must be a single word without '/'", pc.Command)
		}
		if seen[pc.Command] {
			return fmt.Errorf("invalid config: duplicate command %q", pc.Command)
		}
		seen[pc.Command] = true
	}
	return nil
}

// Clone returns a deep copy, so callers can hand out snapshots without sharing slices.
func (c *Config) Clone() *Config {
	out := *c
	out.PriceCommands = append([]PriceCommand(nil), c.PriceCommands...)
	out.SpecialFields = make([]SpecialField, len(c.SpecialFields))
	for i, f := range c.SpecialFields {
		if f.DirectOutput != nil {
			d := *f.DirectOutput
			f.DirectOutput = &d
		}
		out.SpecialFields[i] = f
	}
	return &out
}

// Location returns the region bound to command.
func (c *Config) Location(command string) (int32, bool) {
	for _, pc := range c.PriceCommands {
		if pc.Command == command {
			return pc.Location, true
		}
	}
	return 0, false
}
