package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xrplpay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:5005", cfg.Ledger.URL)
	require.Equal(t, uint32(0), cfg.Ledger.NetworkID)
	require.Equal(t, int64(12), cfg.Ledger.FeeDrops)
	require.Equal(t, uint32(120), cfg.Ledger.MaxLedgerOffset)
	require.Equal(t, 10, cfg.Pipeline.MaxInFlight)
	require.Equal(t, time.Second, cfg.Pipeline.PollInterval)
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, "payments.db", cfg.Storage.Path)
	require.Empty(t, cfg.Admin.GRPCAddress)
	require.Empty(t, cfg.Admin.WSAddress)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
funding:
  address: rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh
ledger:
  url: http://localhost:51234
  fee_drops: 20
pipeline:
  max_in_flight: 3
  poll_interval: 250ms
storage:
  backend: pebble
  path: /var/lib/xrplpay/payments
admin:
  grpc_address: localhost:50061
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", cfg.Funding.Address)
	require.Equal(t, "http://localhost:51234", cfg.Ledger.URL)
	require.Equal(t, int64(20), cfg.Ledger.FeeDrops)
	require.Equal(t, 3, cfg.Pipeline.MaxInFlight)
	require.Equal(t, 250*time.Millisecond, cfg.Pipeline.PollInterval)
	require.Equal(t, BackendPebble, cfg.Storage.Backend)
	require.Equal(t, "/var/lib/xrplpay/payments", cfg.Storage.Path)
	require.Equal(t, "localhost:50061", cfg.Admin.GRPCAddress)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, path, cfg.ConfigPath())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

// The funding secret arrives through the environment, never a file.
func TestLoadSecretFromEnvironment(t *testing.T) {
	t.Setenv("XRPLPAY_FUNDING_SECRET", "snoPBrXtMeMyMHUVTgbuqAfg1SUTb")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "snoPBrXtMeMyMHUVTgbuqAfg1SUTb", cfg.Funding.Secret)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "ledger:\n  url: http://file-wins:5005\n")
	t.Setenv("XRPLPAY_LEDGER_URL", "http://env-wins:5005")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://env-wins:5005", cfg.Ledger.URL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "bad funding address",
			mutate:  func(c *Config) { c.Funding.Address = "not-an-address" },
			wantErr: "funding.address",
		},
		{
			name:    "missing ledger url",
			mutate:  func(c *Config) { c.Ledger.URL = "" },
			wantErr: "ledger.url",
		},
		{
			name:    "zero fee",
			mutate:  func(c *Config) { c.Ledger.FeeDrops = 0 },
			wantErr: "fee_drops",
		},
		{
			name:    "zero ledger offset",
			mutate:  func(c *Config) { c.Ledger.MaxLedgerOffset = 0 },
			wantErr: "max_ledger_offset",
		},
		{
			name:    "zero in-flight window",
			mutate:  func(c *Config) { c.Pipeline.MaxInFlight = 0 },
			wantErr: "max_in_flight",
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.Pipeline.PollInterval = -time.Second },
			wantErr: "poll_interval",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "rocksdb" },
			wantErr: "storage.backend",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPostgres
				c.Storage.DSN = ""
			},
			wantErr: "storage.dsn",
		},
		{
			name: "pebble without path",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendPebble
				c.Storage.Path = ""
			},
			wantErr: "storage.path",
		},
		{
			name: "memory needs nothing",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendMemory
				c.Storage.DSN = ""
				c.Storage.Path = ""
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireFunding(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.RequireFunding())

	cfg.Funding.Address = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	require.Error(t, cfg.RequireFunding())

	cfg.Funding.Secret = "not-a-seed"
	err := cfg.RequireFunding()
	require.Error(t, err)
	require.Contains(t, err.Error(), "family seed")

	cfg.Funding.Secret = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	require.NoError(t, cfg.RequireFunding())
}
