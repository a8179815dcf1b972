// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store driver names accepted by STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	StoreDriver        string
	DBPath             string
	SupabaseURL        string
	SupabaseServiceKey string

	OpenAIKey    string
	FreeModel    string
	ProModel     string
	PromptPath   string // optional override of the embedded system policy
	GenTimeout   time.Duration
	StoreTimeout time.Duration

	FreeDailyLimit int
	HistoryLimit   int

	Stripe StripeConfig
}

// StripeConfig controls the billing endpoints. Billing routes are only
// registered when SecretKey is set.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	AppURL        string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		StoreDriver:        getEnv("STORE_DRIVER", DriverSQLite),
		DBPath:             getEnv("DB_PATH", "./data/clarity.db"),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		FreeModel:    getEnv("OPENAI_FREE_MODEL", "gpt-4.1"),
		ProModel:     getEnv("OPENAI_PRO_MODEL", "gpt-5-chat-latest"),
		PromptPath:   getEnv("PROMPT_PATH", ""),
		GenTimeout:   getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		FreeDailyLimit: getEnvInt("FREE_DAILY_LIMIT", 5),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 30),

		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:       getEnv("STRIPE_PRICE_ID", ""),
			AppURL:        getEnv("APP_URL", "http://localhost:3000"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.FreeDailyLimit <= 0 {
		return fmt.Errorf("FREE_DAILY_LIMIT must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.Stripe.SecretKey != "" {
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
		}
		if c.Stripe.PriceID == "" {
			return fmt.Errorf("STRIPE_PRICE_ID is required when STRIPE_SECRET_KEY is set")
		}
	}
	return nil
}

// BillingEnabled reports whether the Stripe endpoints should be served.
func (c *Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
