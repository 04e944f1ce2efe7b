package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("API_TIMEOUT_SECS", "")
	t.Setenv("STATE_DIR", "")
	t.Setenv("DEFAULT_SYMBOL", "")
	t.Setenv("STARTING_CASH", "")
	t.Setenv("TRACING_ENABLED", "")

	cfg := Load()

	if cfg.APIBaseURL != "http://localhost:8003" {
		t.Errorf("expected default API base URL, got %q", cfg.APIBaseURL)
	}
	if cfg.APITimeoutSecs != 30 {
		t.Errorf("expected default API timeout 30, got %d", cfg.APITimeoutSecs)
	}
	if cfg.DefaultSymbol != "RELIANCE.NS" {
		t.Errorf("expected default symbol RELIANCE.NS, got %q", cfg.DefaultSymbol)
	}
	if cfg.PriceDays != 30 {
		t.Errorf("expected default price days 30, got %d", cfg.PriceDays)
	}
	if cfg.StartingCash != 100000 {
		t.Errorf("expected default starting cash 100000, got %v", cfg.StartingCash)
	}
	if cfg.LogPollSecs != 5 || cfg.AgentPollSecs != 5 || cfg.MoversPollSecs != 60 {
		t.Errorf("unexpected poll intervals: %d/%d/%d", cfg.LogPollSecs, cfg.AgentPollSecs, cfg.MoversPollSecs)
	}
	if cfg.SSHPort != 2223 {
		t.Errorf("expected default SSH port 2223, got %d", cfg.SSHPort)
	}
	if cfg.StateDir == "" {
		t.Error("expected a non-empty state dir")
	}
	if cfg.TracingEnabled {
		t.Error("expected tracing disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://analytics.internal")
	t.Setenv("API_TIMEOUT_SECS", "10")
	t.Setenv("STATE_DIR", "/var/lib/marketdeck")
	t.Setenv("DEFAULT_SYMBOL", "BTC-USD")
	t.Setenv("PRICE_DAYS", "90")
	t.Setenv("STARTING_CASH", "50000")
	t.Setenv("MOVERS_POLL_SECS", "120")
	t.Setenv("API_RATE_REFILL_MS", "500")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	if cfg.APIBaseURL != "https://analytics.internal" {
		t.Errorf("unexpected API base URL: %q", cfg.APIBaseURL)
	}
	if cfg.APITimeoutSecs != 10 {
		t.Errorf("unexpected API timeout: %d", cfg.APITimeoutSecs)
	}
	if cfg.StateDir != "/var/lib/marketdeck" {
		t.Errorf("unexpected state dir: %q", cfg.StateDir)
	}
	if cfg.DefaultSymbol != "BTC-USD" {
		t.Errorf("unexpected default symbol: %q", cfg.DefaultSymbol)
	}
	if cfg.PriceDays != 90 {
		t.Errorf("unexpected price days: %d", cfg.PriceDays)
	}
	if cfg.StartingCash != 50000 {
		t.Errorf("unexpected starting cash: %v", cfg.StartingCash)
	}
	if cfg.MoversPollSecs != 120 {
		t.Errorf("unexpected movers poll interval: %d", cfg.MoversPollSecs)
	}
	if cfg.APIRateRefillMs != 500 {
		t.Errorf("unexpected rate refill interval: %d", cfg.APIRateRefillMs)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("API_TIMEOUT_SECS", "not-a-number")
	t.Setenv("STARTING_CASH", "-100")
	t.Setenv("PRICE_DAYS", "0")

	cfg := Load()

	if cfg.APITimeoutSecs != 30 {
		t.Errorf("expected fallback timeout 30, got %d", cfg.APITimeoutSecs)
	}
	if cfg.StartingCash != 100000 {
		t.Errorf("expected fallback starting cash, got %v", cfg.StartingCash)
	}
	if cfg.PriceDays != 30 {
		t.Errorf("expected fallback price days, got %d", cfg.PriceDays)
	}
}
