// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradelink adapter.
type Config struct {
	Logging Logging       `yaml:"logging"`
	Venue   Venue         `yaml:"venue"`
	Journal Journal       `yaml:"journal"`
	Trading TradingConfig `yaml:"trading"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Venue selects and configures the execution venue session.
type Venue struct {
	// Kind is one of "alpaca", "gateway", "mock".
	Kind    string  `yaml:"kind"`
	Account string  `yaml:"account"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Gateway Gateway `yaml:"gateway"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Gateway holds the websocket endpoint of a venue gateway.
type Gateway struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Journal holds paths for order and execution persistence.
type Journal struct {
	SQLitePath string `yaml:"sqlite_path"`
	ExportDir  string `yaml:"export_dir"`
}

// TradingConfig defines risk and commission parameters.
type TradingConfig struct {
	MaxPositionPct  float64 `yaml:"max_position_pct"`
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`

	Commission  CommissionConfig            `yaml:"commission"`
	Instruments map[string]CommissionConfig `yaml:"instruments"`
}

// CommissionConfig describes one commission scheme. Scheme is "stock" for
// cash-settled instruments or "futures" for margin-settled ones.
type CommissionConfig struct {
	Scheme  string  `yaml:"scheme"`
	Rate    float64 `yaml:"rate"`
	Percent bool    `yaml:"percent"`
	Mult    float64 `yaml:"mult"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Venue.Kind == "" {
		cfg.Venue.Kind = "mock"
	}
}

func (cfg *Config) validate() error {
	switch cfg.Venue.Kind {
	case "alpaca", "gateway", "mock":
	default:
		return fmt.Errorf("unknown venue kind %q", cfg.Venue.Kind)
	}
	if cfg.Venue.Kind == "gateway" && cfg.Venue.Gateway.URL == "" {
		return fmt.Errorf("venue kind gateway requires gateway.url")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VENUE_KIND"); v != "" {
		cfg.Venue.Kind = v
	}
	if v := os.Getenv("VENUE_ACCOUNT"); v != "" {
		cfg.Venue.Account = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Journal.SQLitePath = v
	}
	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Journal.ExportDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Venue.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Venue.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Venue.Alpaca.BaseURL = v
	}

	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Venue.Gateway.URL = v
	}
	if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
		cfg.Venue.Gateway.Token = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Venue.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Venue.Alpaca.APISecret = v
	}
}
