package pebbledb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb/kvdbtest"
)

func TestPebbleConformance(t *testing.T) {
	kvdbtest.Run(t, func(t *testing.T) kvdb.DB {
		db, err := Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}
