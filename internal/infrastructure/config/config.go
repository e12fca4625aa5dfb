// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (docmatch.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	tol := cfg.Matching.ToTolerance()
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// DefaultPath is the config file LoadOrEnv looks for.
const DefaultPath = "docmatch.yaml"

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Matching      MatchingConfig      `yaml:"matching"`
	Limits        LimitsConfig        `yaml:"limits"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig holds the matching tolerances. Zero values keep the
// built-in defaults.
type MatchingConfig struct {
	AmountAbsTolerance  float64  `yaml:"amount_abs_tolerance"`
	AmountPctTolerance  float64  `yaml:"amount_pct_tolerance"`
	DateWindowDays      int      `yaml:"date_window_days"`
	DaysBeforeInvoice   int      `yaml:"days_before_invoice"`
	GraceDays           int      `yaml:"grace_days"`
	DefaultCurrency     string   `yaml:"default_currency"`
	SupportedCurrencies []string `yaml:"supported_currencies"`
	BundleCandidateCap  int      `yaml:"bundle_candidate_cap"`
	MaxBundleSize       int      `yaml:"max_bundle_size"`
	AutoFinalThreshold  float64  `yaml:"auto_final_threshold"`
	SuggestionThreshold float64  `yaml:"suggestion_threshold"`
	PrepassDebug        bool     `yaml:"prepass_debug"`

	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// LifecycleConfig holds the lifecycle classification knobs
type LifecycleConfig struct {
	EigenbelegMaxAmount float64            `yaml:"eigenbeleg_max_amount"`
	FeeMaxAmount        float64            `yaml:"fee_max_amount"`
	FeeVendors          []string           `yaml:"fee_vendors"`
	RematchDaysBefore   int                `yaml:"rematch_days_before"`
	RematchDaysAfter    int                `yaml:"rematch_days_after"`
	Subscription        SubscriptionConfig `yaml:"subscription"`
}

// SubscriptionConfig controls history-based subscription detection
type SubscriptionConfig struct {
	HistoryEnabled bool `yaml:"history_enabled"`
	LookbackDays   int  `yaml:"lookback_days"`
	HistoryLimit   int  `yaml:"history_limit"`
	MinOccurrences int  `yaml:"min_occurrences"`
	Concurrency    int  `yaml:"concurrency"`
}

// LimitsConfig caps the work of a single run
type LimitsConfig struct {
	MaxDocs           int `yaml:"max_docs"`
	MaxTx             int `yaml:"max_tx"`
	MaxRelationsPerTx int `yaml:"max_relations_per_tx"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${DOCMATCH_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("DOCMATCH_DB_PATH", "docmatch.db"),
		},
		Server: ServerConfig{
			Port:           getEnvInt("DOCMATCH_PORT", 8085),
			AllowedOrigins: getEnvList("DOCMATCH_ALLOWED_ORIGINS"),
		},
		Matching: MatchingConfig{
			DefaultCurrency: getEnv("DOCMATCH_DEFAULT_CURRENCY", ""),
			Lifecycle: LifecycleConfig{
				Subscription: SubscriptionConfig{
					HistoryEnabled: getEnv("DOCMATCH_SUBSCRIPTION_HISTORY", "") == "true",
				},
			},
		},
		Limits: LimitsConfig{
			MaxDocs: getEnvInt("DOCMATCH_MAX_DOCS", 0),
			MaxTx:   getEnvInt("DOCMATCH_MAX_TX", 0),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from docmatch.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath(DefaultPath)
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "docmatch.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ToTolerance overlays the configured values on the default matching
// configuration.
func (m MatchingConfig) ToTolerance() tolerance.Config {
	cfg := tolerance.DefaultConfig()

	if m.AmountAbsTolerance > 0 {
		cfg.AmountAbsTolerance = decimal.NewFromFloat(m.AmountAbsTolerance)
	}
	if m.AmountPctTolerance > 0 {
		cfg.AmountPctTolerance = m.AmountPctTolerance
	}
	if m.DateWindowDays > 0 {
		cfg.DateWindowDays = m.DateWindowDays
	}
	if m.DaysBeforeInvoice > 0 {
		cfg.DaysBeforeInvoice = m.DaysBeforeInvoice
	}
	if m.GraceDays > 0 {
		cfg.GraceDays = m.GraceDays
	}
	if m.DefaultCurrency != "" {
		cfg.DefaultCurrency = strings.ToUpper(m.DefaultCurrency)
	}
	if len(m.SupportedCurrencies) > 0 {
		cfg.SupportedCurrencies = m.SupportedCurrencies
	}
	if m.BundleCandidateCap > 0 {
		cfg.BundleCandidateCap = m.BundleCandidateCap
	}
	if m.MaxBundleSize > 0 {
		cfg.MaxBundleSize = m.MaxBundleSize
	}
	if m.AutoFinalThreshold > 0 {
		cfg.AutoFinalThreshold = m.AutoFinalThreshold
	}
	if m.SuggestionThreshold > 0 {
		cfg.SuggestionThreshold = m.SuggestionThreshold
	}
	cfg.PrepassDebug = m.PrepassDebug

	lc := m.Lifecycle
	if lc.EigenbelegMaxAmount > 0 {
		cfg.Lifecycle.EigenbelegMaxAmount = decimal.NewFromFloat(lc.EigenbelegMaxAmount)
	}
	if lc.FeeMaxAmount > 0 {
		cfg.Lifecycle.FeeMaxAmount = decimal.NewFromFloat(lc.FeeMaxAmount)
	}
	if len(lc.FeeVendors) > 0 {
		cfg.Lifecycle.FeeVendorKeys = lc.FeeVendors
	}
	if lc.RematchDaysBefore > 0 {
		cfg.Lifecycle.RematchDaysBefore = lc.RematchDaysBefore
	}
	if lc.RematchDaysAfter > 0 {
		cfg.Lifecycle.RematchDaysAfter = lc.RematchDaysAfter
	}

	sub := lc.Subscription
	cfg.Lifecycle.Subscription.HistoryEnabled = sub.HistoryEnabled
	if sub.LookbackDays > 0 {
		cfg.Lifecycle.Subscription.LookbackDays = sub.LookbackDays
	}
	if sub.HistoryLimit > 0 {
		cfg.Lifecycle.Subscription.HistoryLimit = sub.HistoryLimit
	}
	if sub.MinOccurrences > 0 {
		cfg.Lifecycle.Subscription.MinOccurrences = sub.MinOccurrences
	}
	if sub.Concurrency > 0 {
		cfg.Lifecycle.Subscription.Concurrency = sub.Concurrency
	}

	return cfg.Sanitized()
}

// ToLimits converts the configured limits, defaulting the relation cap.
func (l LimitsConfig) ToLimits() tolerance.Limits {
	limits := tolerance.DefaultLimits()
	limits.MaxDocs = l.MaxDocs
	limits.MaxTx = l.MaxTx
	if l.MaxRelationsPerTx > 0 {
		limits.MaxRelationsPerTx = l.MaxRelationsPerTx
	}
	return limits
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma separated environment variable
func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
