package kv

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb/leveldb"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb/pebbledb"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/storetest"
)

func TestKVConformancePebble(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payout.Store {
		db, err := pebbledb.Open(t.TempDir())
		require.NoError(t, err)
		store := New(db)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestKVConformanceLevelDB(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payout.Store {
		db, err := leveldb.Open(t.TempDir())
		require.NoError(t, err)
		store := New(db)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func openPebbleStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebbledb.Open(t.TempDir())
	require.NoError(t, err)
	store := New(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Large artifacts are compressed at rest and must round-trip intact.
func TestKVArtifactCompression(t *testing.T) {
	ctx := context.Background()
	store := openPebbleStore(t)

	// Repetitive payload, well over the threshold and highly compressible.
	artifact := bytes.Repeat([]byte("1200002280000000240000002A"), 64)

	id, err := store.InsertPending(ctx, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		payout.NewNativeAmount(1_000_000), "")
	require.NoError(t, err)
	require.NoError(t, store.MarkSigned(ctx, id, 7, artifact))

	raw, err := store.db.Read(ctx, rowKey(id))
	require.NoError(t, err)
	rec, err := decodeRecord(raw)
	require.NoError(t, err)
	require.True(t, rec.ArtifactCompressed)
	require.Equal(t, len(artifact), rec.ArtifactRawLen)
	require.Less(t, len(rec.Artifact), len(artifact))

	p, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	require.Equal(t, artifact, p.SignedArtifact)
}

// Small artifacts skip compression entirely.
func TestKVArtifactSmallStoredRaw(t *testing.T) {
	ctx := context.Background()
	store := openPebbleStore(t)

	artifact := []byte("tiny blob")
	id, err := store.InsertPending(ctx, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		payout.NewNativeAmount(10), "")
	require.NoError(t, err)
	require.NoError(t, store.MarkSigned(ctx, id, 1, artifact))

	raw, err := store.db.Read(ctx, rowKey(id))
	require.NoError(t, err)
	rec, err := decodeRecord(raw)
	require.NoError(t, err)
	require.False(t, rec.ArtifactCompressed)
	require.Equal(t, artifact, rec.Artifact)

	p, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	require.Equal(t, artifact, p.SignedArtifact)
}

// Ids keep ascending after reopening the same database.
func TestKVIDCounterPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := pebbledb.Open(dir)
	require.NoError(t, err)
	store := New(db)

	first, err := store.InsertPending(ctx, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		payout.NewNativeAmount(1), "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err = pebbledb.Open(dir)
	require.NoError(t, err)
	store = New(db)
	defer store.Close()

	second, err := store.InsertPending(ctx, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		payout.NewNativeAmount(1), "")
	require.NoError(t, err)
	require.Greater(t, second, first)
}
