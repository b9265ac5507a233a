// Package config loads engine configuration from a YAML file (default:
// configs/config.yaml) for venue/strategy knobs, with the two trading
// secrets required and sourced exclusively from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure, with APIKey/APISecret populated from the environment only.
type Config struct {
	Symbol   string         `mapstructure:"symbol"`
	Venue    VenueConfig    `mapstructure:"venue"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	APIKey    string `mapstructure:"-"`
	APISecret string `mapstructure:"-"`
}

// Endpoint is one WebSocket connection target: host for TLS ServerName and
// dialing, path for the HTTP Upgrade request line.
type Endpoint struct {
	Host string `mapstructure:"host"`
	Path string `mapstructure:"path"`
}

// VenueConfig names the four WebSocket sessions and the one REST base URL
// this engine ever talks to (spec.md §6).
type VenueConfig struct {
	PublicMarketData  Endpoint `mapstructure:"public_market_data"`
	ReferenceFeed     Endpoint `mapstructure:"reference_feed"`
	PrivateAccount    Endpoint `mapstructure:"private_account"`
	PrivateOrderEntry Endpoint `mapstructure:"private_order_entry"`
	RESTBaseURL       string   `mapstructure:"rest_base_url"`
}

// StrategyConfig carries the venue/symbol-specific knobs for the quoting
// strategy (internal/strategy.Config). The algorithm's own thresholds
// (take-profit, time-stop, spread formulas) are spec-fixed constants, not
// configuration.
type StrategyConfig struct {
	PriceDecimals int     `mapstructure:"price_decimals"`
	OrderQty      float64 `mapstructure:"order_qty"`

	ToxicityEnabled         bool          `mapstructure:"toxicity_enabled"`
	FlowWindow              time.Duration `mapstructure:"flow_window"`
	FlowToxicityThreshold   float64       `mapstructure:"flow_toxicity_threshold"`
	FlowCooldownPeriod      time.Duration `mapstructure:"flow_cooldown_period"`
	FlowMaxSpreadMultiplier float64       `mapstructure:"flow_max_spread_multiplier"`
}

// RiskConfig controls the risk gate's latency budget mode.
type RiskConfig struct {
	DevMode bool `mapstructure:"dev_mode"`
}

// LoggingConfig controls the cold thread's slog setup. Minimal is set only
// from HFT_LOG_MODE=minimal; the YAML file does not set it.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Minimal bool   `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbol", "RIVERUSDT")

	v.SetDefault("venue.public_market_data.host", "stream.bybit.com")
	v.SetDefault("venue.public_market_data.path", "/v5/public/linear")

	// The reference feed is a different venue entirely (Binance's top-of-book
	// stream) per spec.md's StrategyState field names (binance_bid/ask).
	v.SetDefault("venue.reference_feed.host", "stream.binance.com:9443")
	v.SetDefault("venue.reference_feed.path", "/ws/riverusdt@bookTicker")

	v.SetDefault("venue.private_account.host", "stream.bybit.com")
	v.SetDefault("venue.private_account.path", "/v5/private")

	v.SetDefault("venue.private_order_entry.host", "stream.bybit.com")
	v.SetDefault("venue.private_order_entry.path", "/v5/trade")

	v.SetDefault("venue.rest_base_url", "https://api.bybit.com")

	v.SetDefault("strategy.price_decimals", 3)
	v.SetDefault("strategy.order_qty", 0.2)
	v.SetDefault("strategy.toxicity_enabled", false)
	v.SetDefault("strategy.flow_window", 60*time.Second)
	v.SetDefault("strategy.flow_toxicity_threshold", 0.6)
	v.SetDefault("strategy.flow_cooldown_period", 120*time.Second)
	v.SetDefault("strategy.flow_max_spread_multiplier", 3.0)

	v.SetDefault("risk.dev_mode", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads config from a YAML file, applying defaults for anything the
// file omits, then fills in the two required secrets and the log-mode
// override from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIKey = os.Getenv("BYBIT_API_KEY")
	cfg.APISecret = os.Getenv("BYBIT_SECRET_KEY")
	cfg.Logging.Minimal = os.Getenv("HFT_LOG_MODE") == "minimal"

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("BYBIT_API_KEY is required")
	}
	if c.APISecret == "" {
		return fmt.Errorf("BYBIT_SECRET_KEY is required")
	}
	if c.Venue.PublicMarketData.Host == "" {
		return fmt.Errorf("venue.public_market_data.host is required")
	}
	if c.Venue.ReferenceFeed.Host == "" {
		return fmt.Errorf("venue.reference_feed.host is required")
	}
	if c.Venue.PrivateAccount.Host == "" {
		return fmt.Errorf("venue.private_account.host is required")
	}
	if c.Venue.PrivateOrderEntry.Host == "" {
		return fmt.Errorf("venue.private_order_entry.host is required")
	}
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if c.Strategy.OrderQty <= 0 {
		return fmt.Errorf("strategy.order_qty must be > 0")
	}
	if c.Strategy.PriceDecimals <= 0 {
		return fmt.Errorf("strategy.price_decimals must be > 0")
	}
	return nil
}
