package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("Expected sqlite default driver, got %s", cfg.StoreDriver)
	}
	if cfg.FreeDailyLimit != 5 {
		t.Errorf("Expected default daily limit 5, got %d", cfg.FreeDailyLimit)
	}
	if cfg.HistoryLimit != 30 {
		t.Errorf("Expected default history limit 30, got %d", cfg.HistoryLimit)
	}
	if cfg.GenTimeout != 30*time.Second {
		t.Errorf("Expected default generation timeout 30s, got %s", cfg.GenTimeout)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("Expected default store timeout 5s, got %s", cfg.StoreTimeout)
	}
	if cfg.BillingEnabled() {
		t.Error("Billing should be disabled without a Stripe key")
	}
}

func TestLoadMissingOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("Load should fail without OPENAI_API_KEY")
	}
}

func TestLoadSupabaseDriverRequiresCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "supabase")

	if _, err := Load(); err == nil {
		t.Error("Supabase driver without credentials should fail validation")
	}

	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StoreDriver != DriverSupabase {
		t.Errorf("Expected supabase driver, got %s", cfg.StoreDriver)
	}
}

func TestLoadUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "cassandra")

	if _, err := Load(); err == nil {
		t.Error("Unknown driver should fail validation")
	}
}

func TestLoadStripeRequiresWebhookSecretAndPrice(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_x")

	if _, err := Load(); err == nil {
		t.Error("Stripe key without webhook secret should fail validation")
	}

	// A missing price id would otherwise surface as a 500 on the first
	// checkout attempt; it belongs in boot validation.
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	if _, err := Load(); err == nil {
		t.Error("Stripe key without price id should fail validation")
	}

	t.Setenv("STRIPE_PRICE_ID", "price_x")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.BillingEnabled() {
		t.Error("Billing should be enabled with a Stripe key")
	}
}

func TestEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FREE_DAILY_LIMIT", "10")
	t.Setenv("GENERATION_TIMEOUT", "15s")
	t.Setenv("OPENAI_FREE_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FreeDailyLimit != 10 {
		t.Errorf("Expected limit 10, got %d", cfg.FreeDailyLimit)
	}
	if cfg.GenTimeout != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %s", cfg.GenTimeout)
	}
	if cfg.FreeModel != "gpt-4o-mini" {
		t.Errorf("Expected model override, got %s", cfg.FreeModel)
	}
}
