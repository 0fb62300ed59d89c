package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/storetest"
)

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payout.Store {
		path := filepath.Join(t.TempDir(), "payments.db")
		store, err := Open(context.Background(), path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

// Rows must survive reopening the same file.
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "payments.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)

	id, err := store.InsertPending(ctx, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
		payout.NewNativeAmount(1_000_000), "survives restart")
	require.NoError(t, err)
	require.NoError(t, store.MarkSigned(ctx, id, 42, []byte("artifact")))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	p, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	require.Equal(t, payout.StateSigned, p.State)
	require.NotNil(t, p.Sequence)
	require.Equal(t, uint32(42), *p.Sequence)
	require.Equal(t, []byte("artifact"), p.SignedArtifact)

	highest, found, err := store.HighestSequence(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(42), highest)
}
