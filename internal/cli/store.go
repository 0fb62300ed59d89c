package cli

import (
	"context"
	"fmt"

	"github.com/LeJamon/goXRPLpay/internal/config"
	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb/leveldb"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb/pebbledb"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/kv"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/memory"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/postgres"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/sqlite"
)

// openStore opens the payment store named by storage.backend. The caller
// owns the returned store and must close it.
func openStore(ctx context.Context, cfg *config.Config) (payout.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		return postgres.Open(ctx, postgres.Config{DSN: cfg.Storage.DSN})
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.Storage.Path)
	case config.BackendPebble:
		db, err := pebbledb.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return kv.New(db), nil
	case config.BackendLevelDB:
		db, err := leveldb.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return kv.New(db), nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
