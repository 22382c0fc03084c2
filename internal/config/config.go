package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultBaseURL = "https://FunctionAppCCB2.azurewebsites.net/"
	DefaultUserID  = 1
)

// Config is read from an optional JSON file and then from the environment.
// JSON keys use the same names as the environment variables.
type Config struct {
	// Remote expense service
	BaseURL     string        `koanf:"EXPENSINATOR_BASE_URL"`
	UserID      int64         `koanf:"EXPENSINATOR_USER_ID"`
	HTTPTimeout time.Duration `koanf:"EXPENSINATOR_HTTP_TIMEOUT"`

	// Local state
	DraftsDB          string        `koanf:"EXPENSINATOR_DRAFTS_DB"`
	CategoryCacheTTL  time.Duration `koanf:"CATEGORY_CACHE_TTL"`
	ImportConcurrency int           `koanf:"IMPORT_CONCURRENCY"`

	// AMQP
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE"`

	// Receipt scanning
	GeminiAPIKey string `koanf:"GEMINI_API_KEY"`
	GeminiModel  string `koanf:"GEMINI_MODEL"`

	// Google Sheets export
	GoogleSpreadsheetID      string `koanf:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `koanf:"GOOGLE_SHEET_NAME"`
	GoogleServiceAccountFile string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON string `koanf:"GOOGLE_SERVICE_ACCOUNT_JSON"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		UserID:            DefaultUserID,
		HTTPTimeout:       30 * time.Second,
		DraftsDB:          "./data/drafts.db",
		ImportConcurrency: 4,
		AMQPExchange:      "expensinator.events",
		GeminiModel:       "gemini-2.0-flash",
		GoogleSheetName:   "Expenses",
		LogLevel:          "warn",
		LogFormat:         "text",
	}
}

// Load starts from Default, overlays the JSON file at path when path is not
// empty, then overlays environment variables. Empty variables are ignored.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	nonEmpty := func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	}
	if err := k.Load(env.ProviderWithValue("", ".", nonEmpty), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// AMQPEnabled reports whether events are mirrored over AMQP.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// ScannerEnabled reports whether receipts can be scanned.
func (c *Config) ScannerEnabled() bool { return c.GeminiAPIKey != "" }

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate remote service
	if parsedURL, err := url.Parse(c.BaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid base URL '%s': %v", c.BaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	} else if parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid base URL '%s': missing host", c.BaseURL))
	}

	if c.UserID < 1 {
		errors = append(errors, fmt.Sprintf("invalid user ID %d: must be positive", c.UserID))
	}

	if c.HTTPTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be positive", c.HTTPTimeout))
	} else if c.HTTPTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 10 minutes", c.HTTPTimeout))
	}

	// Validate local state
	if c.DraftsDB == "" {
		errors = append(errors, "drafts database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DraftsDB)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create drafts database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
	}

	if c.ImportConcurrency < 1 || c.ImportConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid import concurrency %d: must be between 1 and 32", c.ImportConcurrency))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if export is enabled
	if c.SheetsEnabled() && c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	// Validate logging
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
