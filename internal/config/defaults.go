package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	// Funding account. The secret defaults empty so the environment
	// binding exists without a value ever living in a file.
	v.SetDefault("funding.address", "")
	v.SetDefault("funding.secret", "")

	// Ledger endpoint and transaction parameters.
	v.SetDefault("ledger.url", "http://localhost:5005")
	v.SetDefault("ledger.network_id", 0)
	v.SetDefault("ledger.fee_drops", 12)
	v.SetDefault("ledger.max_ledger_offset", 120)

	// Pipeline pacing.
	v.SetDefault("pipeline.max_in_flight", 10)
	v.SetDefault("pipeline.poll_interval", time.Second)

	// Storage.
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.path", "payments.db")

	// Admin surface, off until given an address.
	v.SetDefault("admin.grpc_address", "")
	v.SetDefault("admin.ws_address", "")

	// Logging.
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
