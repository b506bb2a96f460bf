// Package config loads the commerce layer configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Selector SelectorConfig `yaml:"selector"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Payment  PaymentConfig  `yaml:"payment"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port              int      `yaml:"port"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerSecond int      `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// PricingConfig holds pricing constants.
type PricingConfig struct {
	TaxRate float64 `yaml:"tax_rate"`
}

// Duration wraps time.Duration so yaml values like "15s" decode.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SelectorConfig configures the best-card selector endpoint.
type SelectorConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// ScannerConfig configures the card identification/scan endpoint.
type ScannerConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// AdvisorConfig configures the card-advice chat backend.
type AdvisorConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// PaymentConfig holds the payment SDK handoff parameters.
type PaymentConfig struct {
	ClientID    string   `yaml:"client_id"`
	MerchantIDs []string `yaml:"merchant_ids"`
	EntryPoint  string   `yaml:"entry_point"`
}

// StorageConfig selects the card/order persistence backend.
type StorageConfig struct {
	// Backend is "memory", "postgres" or "supabase".
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads the configuration from config/commerce.yaml.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "commerce.yaml"))
}

// LoadFromPath reads the configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration or returns defaults if the file is missing.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			AllowedOrigins:    []string{"*"},
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Pricing: PricingConfig{
			TaxRate: 0.06625,
		},
		Selector: SelectorConfig{
			Timeout: Duration(15 * time.Second),
		},
		Scanner: ScannerConfig{
			Timeout: Duration(30 * time.Second),
		},
		Advisor: AdvisorConfig{
			Timeout: Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("pricing.tax_rate out of range: %v", c.Pricing.TaxRate)
	}
	switch c.Storage.Backend {
	case "", "memory", "supabase":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	return nil
}
