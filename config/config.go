package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradekit/journal"
	"github.com/rustyeddy/tradekit/market"
)

// Environment variables that override file values.
const (
	EnvLogLevel    = "TRADER_LOG_LEVEL"
	EnvJournalType = "TRADER_JOURNAL_TYPE"
	EnvJournalDB   = "TRADER_JOURNAL_DB"
)

// Config is the complete tool configuration
type Config struct {
	Account     AccountConfig     `json:"account" yaml:"account"`
	Symbols     []string          `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation"`
	Journal     JournalConfig     `json:"journal" yaml:"journal"`
	Log         LogConfig         `json:"log" yaml:"log"`
}

// AccountConfig contains the simulated account parameters
type AccountConfig struct {
	ID                string  `json:"id" yaml:"id"`
	Currency          string  `json:"currency" yaml:"currency"`
	Balance           float64 `json:"balance" yaml:"balance"`
	CommissionPerUnit float64 `json:"commission_per_unit,omitempty" yaml:"commission_per_unit,omitempty"`
	StopOutLevel      float64 `json:"stop_out_level,omitempty" yaml:"stop_out_level,omitempty"` // percent, 0 disables
	HistoryLimit      int     `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
}

// AggregationConfig holds the defaults of the aggregate command
type AggregationConfig struct {
	Timeframe string `json:"timeframe" yaml:"timeframe"` // M5, H1 or a duration like 90s
	Side      string `json:"side" yaml:"side"`           // bid or ask
	Limit     int    `json:"limit,omitempty" yaml:"limit,omitempty"`
	StoreDir  string `json:"store_dir,omitempty" yaml:"store_dir,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
}

// Sink converts the section to the journal package's selector.
func (j JournalConfig) Sink() journal.Config {
	return journal.Config{
		Type:       j.Type,
		OrdersFile: j.OrdersFile,
		EquityFile: j.EquityFile,
		DBPath:     j.DBPath,
	}
}

// TimeframeSeconds returns the aggregation timeframe in seconds.
func (a AggregationConfig) TimeframeSeconds() (int32, error) {
	return market.ParseTimeframe(a.Timeframe)
}

// PriceSide returns the parsed aggregation side.
func (a AggregationConfig) PriceSide() (market.PriceSide, error) {
	return market.ParsePriceSide(a.Side)
}

// PeriodLimit maps the configured limit to Aggregate's, where 0 means no cap.
func (a AggregationConfig) PeriodLimit() int {
	if a.Limit == 0 {
		return market.NoLimit
	}
	return a.Limit
}

// Load reads path, or starts from Default when path is empty, then loads a
// .env file if there is one, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		*cfg = Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// LoadEnv loads .env from the working directory. A missing file is fine.
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides file values with the TRADER_* environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvJournalType); ok && v != "" {
		c.Journal.Type = v
	}
	if v, ok := os.LookupEnv(EnvJournalDB); ok && v != "" {
		c.Journal.DBPath = v
	}
}

// SaveToFile saves configuration to a file (YAML by extension, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Account.CommissionPerUnit < 0 {
		return fmt.Errorf("account.commission_per_unit must not be negative")
	}
	if c.Account.StopOutLevel < 0 {
		return fmt.Errorf("account.stop_out_level must not be negative")
	}
	if c.Account.HistoryLimit < 0 {
		return fmt.Errorf("account.history_limit must not be negative")
	}

	for _, s := range c.Symbols {
		if _, err := market.LookupSymbol(s); err != nil {
			return fmt.Errorf("symbols: %w", err)
		}
	}

	if _, err := c.Aggregation.TimeframeSeconds(); err != nil {
		return fmt.Errorf("aggregation.timeframe: %w", err)
	}
	if _, err := c.Aggregation.PriceSide(); err != nil {
		return fmt.Errorf("aggregation.side: %w", err)
	}
	if c.Aggregation.Limit < 0 {
		return fmt.Errorf("aggregation.limit must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:           "SIM-001",
			Currency:     "USD",
			Balance:      100000,
			StopOutLevel: 50,
		},
		Aggregation: AggregationConfig{
			Timeframe: "M1",
			Side:      "bid",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./trader.sqlite",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
