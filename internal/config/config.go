// Package config loads application settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	SlackBotToken      string
	SlackAppToken      string // enables Socket Mode
	SlackSigningSecret string // enables the HTTP Events API endpoint

	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	DataDir string

	// LLM providers in preference order ("openai", "gemini", "anthropic").
	LLMProviders    []string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	AnthropicAPIKey string
	CharacterFile   string // empty = embedded default character

	MetricsUsername string
	MetricsPassword string // empty = no auth on /metrics

	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64

	BetterStackToken    string
	BetterStackEndpoint string

	R2 R2Config

	Bot BotConfig
}

// R2Config configures database snapshots to an S3-compatible bucket.
type R2Config struct {
	Enabled         bool
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Endpoint        string // overrides the Cloudflare endpoint derived from AccountID
	SnapshotKey     string
	StateKey        string
	Schedule        string // cron spec
	Timeout         time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SlackBotToken:      getEnv(EnvSlackBotToken, ""),
		SlackAppToken:      getEnv(EnvSlackAppToken, ""),
		SlackSigningSecret: getEnv(EnvSlackSigningSecret, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir: getEnv(EnvDataDir, DefaultDataDir()),

		LLMProviders:    getListEnv(EnvLLMProviders, []string{"openai", "gemini", "anthropic"}),
		OpenAIAPIKey:    getEnv(EnvOpenAIAPIKey, ""),
		OpenAIBaseURL:   getEnv(EnvOpenAIBaseURL, ""),
		GeminiAPIKey:    getEnv(EnvGeminiAPIKey, ""),
		AnthropicAPIKey: getEnv(EnvAnthropicAPIKey, ""),
		CharacterFile:   getEnv(EnvCharacterFile, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, "https://in.logs.betterstack.com"),

		R2: R2Config{
			Enabled:         getBoolEnv(EnvR2Enabled, false),
			AccountID:       getEnv(EnvR2AccountID, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			BucketName:      getEnv(EnvR2BucketName, ""),
			Endpoint:        getEnv(EnvR2Endpoint, ""),
			SnapshotKey:     getEnv(EnvR2SnapshotKey, "snapshots/lullabot.db.zst"),
			StateKey:        getEnv(EnvR2StateKey, "snapshots/state.json"),
			Schedule:        getEnv(EnvSnapshotSchedule, "@every 6h"),
			Timeout:         getDurationEnv(EnvSnapshotTimeout, SnapshotJob),
		},

		Bot: loadBotConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.SlackBotToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvSlackBotToken))
	} else if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		errs = append(errs, fmt.Errorf("%s must be a bot token (xoxb-)", EnvSlackBotToken))
	}
	switch {
	case c.SlackAppToken == "" && c.SlackSigningSecret == "":
		errs = append(errs, fmt.Errorf("%s or %s is required", EnvSlackAppToken, EnvSlackSigningSecret))
	case c.SlackAppToken != "" && !strings.HasPrefix(c.SlackAppToken, "xapp-"):
		errs = append(errs, fmt.Errorf("%s must be an app-level token (xapp-)", EnvSlackAppToken))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	for _, p := range c.LLMProviders {
		switch p {
		case "openai", "gemini", "anthropic":
		default:
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", EnvLLMProviders, p))
		}
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if c.R2.Enabled {
		if err := c.R2.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("r2: %w", err))
		}
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks the fields required to reach the bucket.
func (r R2Config) Validate() error {
	var errs []error
	if r.AccountID == "" && r.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%s or %s is required", EnvR2AccountID, EnvR2Endpoint))
	}
	if r.AccessKeyID == "" || r.SecretAccessKey == "" {
		errs = append(errs, errors.New("access key ID and secret are required"))
	}
	if r.BucketName == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvR2BucketName))
	}
	if r.SnapshotKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvR2SnapshotKey))
	}
	if r.StateKey == "" || r.StateKey == r.SnapshotKey {
		errs = append(errs, fmt.Errorf("%s must be set and differ from %s", EnvR2StateKey, EnvR2SnapshotKey))
	}
	if r.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSnapshotTimeout, r.Timeout))
	}
	return errors.Join(errs...)
}

// SQLitePath returns the database file location.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "lullabot.db")
}

// SocketMode reports whether events arrive over a Socket Mode connection.
func (c *Config) SocketMode() bool {
	return c.SlackAppToken != ""
}

// HasLLMProvider reports whether any completion provider has credentials.
func (c *Config) HasLLMProvider() bool {
	return c.OpenAIAPIKey != "" || c.GeminiAPIKey != "" || c.AnthropicAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value, lowercasing and dropping
// empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// DefaultDataDir is used when DATA_DIR is unset.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
