// Package config provides configuration file support for leasekeeper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/fsutil"
	"github.com/adslot/leasekeeper/pkg/model"
	"github.com/adslot/leasekeeper/pkg/webhook"
)

// EnvNetwork overrides Config.Network when set.
const EnvNetwork = "LEASEKEEPER_NETWORK"

// Config represents the leasekeeper configuration.
type Config struct {
	Network  string                   `yaml:"network"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Contract ContractConfig           `yaml:"contract"`
	Confirm  ConfirmConfig            `yaml:"confirm"`
	Request  RequestConfig            `yaml:"request"`
	Renewal  RenewalConfig            `yaml:"renewal"`
	Logging  LoggingConfig            `yaml:"logging"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Cache    CacheConfig              `yaml:"cache"`
	Journal  JournalConfig            `yaml:"journal"`
	Webhook  webhook.Config           `yaml:"webhook"`
}

// NetworkConfig is one storage network profile.
type NetworkConfig struct {
	EpochLength   time.Duration `yaml:"epoch_length"`
	AggregatorURL string        `yaml:"aggregator_url"`
}

// ContractConfig names the on-ledger contract.
type ContractConfig struct {
	PackageID string `yaml:"package_id"`
	Module    string `yaml:"module"`
	FactoryID string `yaml:"factory_id"`
	ClockID   string `yaml:"clock_id"`
}

// ConfirmConfig configures the confirmation poller.
type ConfirmConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// RequestConfig bounds each network call.
type RequestConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RenewalConfig holds renewal defaults.
type RenewalConfig struct {
	DefaultDays int `yaml:"default_days"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// CacheConfig locates the local lease cache. Empty disables it.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig locates the event journal. Empty disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Network: string(model.NetworkTestnet),
		Networks: map[string]NetworkConfig{
			string(model.NetworkTestnet): {
				EpochLength:   24 * time.Hour,
				AggregatorURL: "https://aggregator.walrus-testnet.walrus.space/v1/blobs/by-object-id/",
			},
			string(model.NetworkMainnet): {
				EpochLength:   14 * 24 * time.Hour,
				AggregatorURL: "https://walrus.globalstake.io/v1/blobs/by-object-id/",
			},
		},
		Contract: ContractConfig{
			Module:  "nft_billboard",
			ClockID: "0x6",
		},
		Confirm: ConfirmConfig{
			MaxAttempts: 5,
			BaseDelay:   2 * time.Second,
		},
		Request: RequestConfig{
			Timeout: 60 * time.Second,
		},
		Renewal: RenewalConfig{
			DefaultDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
		Webhook: *webhook.DefaultConfig(),
	}
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "leasekeeper", "config.yaml")
}

// Load loads configuration from path.
// Returns default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvNetwork)); v != "" {
		cfg.Network = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsutil.AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields every component depends on.
func (c *Config) Validate() error {
	n, ok := c.Networks[c.Network]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown network %q", c.Network)
	}
	if n.EpochLength <= 0 {
		return errclass.ErrConfigInvalid.WithMessagef("network %q: epoch_length must be positive", c.Network)
	}
	if c.Confirm.MaxAttempts < 1 {
		return errclass.ErrConfigInvalid.WithMessage("confirm.max_attempts must be at least 1")
	}
	if c.Confirm.BaseDelay < 0 {
		return errclass.ErrConfigInvalid.WithMessage("confirm.base_delay must not be negative")
	}
	if c.Request.Timeout <= 0 {
		return errclass.ErrConfigInvalid.WithMessage("request.timeout must be positive")
	}
	if c.Renewal.DefaultDays < 1 {
		return errclass.ErrConfigInvalid.WithMessage("renewal.default_days must be at least 1")
	}
	if c.Contract.Module == "" || c.Contract.ClockID == "" {
		return errclass.ErrConfigInvalid.WithMessage("contract.module and contract.clock_id are required")
	}
	return nil
}

// EpochPolicy returns the policy of the selected network.
func (c *Config) EpochPolicy() model.EpochPolicy {
	return model.EpochPolicy{
		Network:     model.NetworkName(c.Network),
		EpochLength: c.Networks[c.Network].EpochLength,
	}
}

// AggregatorURL returns the display base of the selected network.
func (c *Config) AggregatorURL() string {
	return c.Networks[c.Network].AggregatorURL
}
