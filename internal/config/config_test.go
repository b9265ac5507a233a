package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "symbol: TESTUSDT\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol != "TESTUSDT" {
		t.Errorf("Symbol = %q, want TESTUSDT", cfg.Symbol)
	}
	if cfg.Venue.PublicMarketData.Host != "stream.bybit.com" {
		t.Errorf("PublicMarketData.Host = %q, want default", cfg.Venue.PublicMarketData.Host)
	}
	if cfg.Strategy.OrderQty != 0.2 {
		t.Errorf("OrderQty = %v, want default 0.2", cfg.Strategy.OrderQty)
	}
}

func TestLoadReadsSecretsFromEnvironment(t *testing.T) {
	path := writeTempConfig(t, "symbol: TESTUSDT\n")
	t.Setenv("BYBIT_API_KEY", "key-123")
	t.Setenv("BYBIT_SECRET_KEY", "secret-456")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "key-123" {
		t.Errorf("APIKey = %q, want key-123", cfg.APIKey)
	}
	if cfg.APISecret != "secret-456" {
		t.Errorf("APISecret = %q, want secret-456", cfg.APISecret)
	}
}

func TestLoadMinimalLogMode(t *testing.T) {
	path := writeTempConfig(t, "symbol: TESTUSDT\n")
	t.Setenv("HFT_LOG_MODE", "minimal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Logging.Minimal {
		t.Errorf("Logging.Minimal = false, want true")
	}
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := &Config{
		Symbol: "TESTUSDT",
		Venue: VenueConfig{
			PublicMarketData:  Endpoint{Host: "a"},
			ReferenceFeed:     Endpoint{Host: "b"},
			PrivateAccount:    Endpoint{Host: "c"},
			PrivateOrderEntry: Endpoint{Host: "d"},
			RESTBaseURL:       "https://example.com",
		},
		Strategy: StrategyConfig{OrderQty: 0.2, PriceDecimals: 3},
	}

	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate() = nil, want error for missing API key")
	}

	cfg.APIKey = "k"
	cfg.APISecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil once secrets are set", err)
	}
}

func TestValidateRequiresPositiveOrderQty(t *testing.T) {
	cfg := &Config{
		Symbol:    "TESTUSDT",
		APIKey:    "k",
		APISecret: "s",
		Venue: VenueConfig{
			PublicMarketData:  Endpoint{Host: "a"},
			ReferenceFeed:     Endpoint{Host: "b"},
			PrivateAccount:    Endpoint{Host: "c"},
			PrivateOrderEntry: Endpoint{Host: "d"},
			RESTBaseURL:       "https://example.com",
		},
		Strategy: StrategyConfig{OrderQty: 0, PriceDecimals: 3},
	}

	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate() = nil, want error for non-positive order_qty")
	}
}
