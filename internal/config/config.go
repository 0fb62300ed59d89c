// Package config loads and validates the daemon configuration from
// defaults, an optional config file and XRPLPAY_-prefixed environment
// variables, in that priority order.
package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/LeJamon/goXRPLpay/internal/keys"
)

// Storage backend names accepted for storage.backend.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendPebble   = "pebble"
	BackendLevelDB  = "leveldb"
	BackendMemory   = "memory"
)

// Config is the complete daemon configuration.
type Config struct {
	Funding  FundingConfig  `mapstructure:"funding"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`

	configPath string
}

// FundingConfig identifies the account every payout is sent from.
type FundingConfig struct {
	// Address is the classic address of the funding account.
	Address string `mapstructure:"address"`

	// Secret is the family seed of the funding account. Usually supplied
	// through XRPLPAY_FUNDING_SECRET. Never logged.
	Secret string `mapstructure:"secret"`
}

// LedgerConfig points at the rippled JSON-RPC endpoint and sets the
// transaction parameters stamped on every signed payment.
type LedgerConfig struct {
	URL             string `mapstructure:"url"`
	NetworkID       uint32 `mapstructure:"network_id"`
	FeeDrops        int64  `mapstructure:"fee_drops"`
	MaxLedgerOffset uint32 `mapstructure:"max_ledger_offset"`
}

// PipelineConfig bounds the in-flight window and the tick cadence.
type PipelineConfig struct {
	MaxInFlight  int           `mapstructure:"max_in_flight"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// StorageConfig selects the payment store backend. Postgres reads DSN,
// the embedded backends read Path, memory needs neither.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
	Path    string `mapstructure:"path"`
}

// AdminConfig configures the operator surface. An empty address leaves
// that server off.
type AdminConfig struct {
	GRPCAddress string `mapstructure:"grpc_address"`
	WSAddress   string `mapstructure:"ws_address"`
}

// LogConfig sets the logrus level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConfigPath returns the file the configuration was loaded from, "" when
// running on defaults and environment only.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// Validate checks the configuration after loading. The funding secret is
// deliberately not required here: read-only commands run without it, and
// the run command checks it separately.
func (c *Config) Validate() error {
	if c.Funding.Address != "" && !keys.IsValidClassicAddress(c.Funding.Address) {
		return fmt.Errorf("funding.address %q is not a valid classic address", c.Funding.Address)
	}

	if c.Ledger.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	if c.Ledger.FeeDrops <= 0 {
		return fmt.Errorf("ledger.fee_drops must be positive, got %d", c.Ledger.FeeDrops)
	}
	if c.Ledger.MaxLedgerOffset == 0 {
		return fmt.Errorf("ledger.max_ledger_offset must be positive")
	}

	if c.Pipeline.MaxInFlight <= 0 {
		return fmt.Errorf("pipeline.max_in_flight must be positive, got %d", c.Pipeline.MaxInFlight)
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive, got %s", c.Pipeline.PollInterval)
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	case BackendSQLite, BackendPebble, BackendLevelDB:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of postgres, sqlite, pebble, leveldb, memory",
			c.Storage.Backend)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	return nil
}

// RequireFunding checks the fields only the signing path needs.
func (c *Config) RequireFunding() error {
	if c.Funding.Address == "" {
		return fmt.Errorf("funding.address is required")
	}
	if c.Funding.Secret == "" {
		return fmt.Errorf("funding.secret is required (set XRPLPAY_FUNDING_SECRET)")
	}
	entropy, _, err := keys.DecodeSeed(c.Funding.Secret)
	if err != nil {
		return fmt.Errorf("funding.secret is not a valid family seed")
	}
	keys.SecureErase(entropy)
	return nil
}
