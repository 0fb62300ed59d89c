// Package storetest holds the conformance suite every payout.Store
// backend must pass. Backend packages call Run from their own tests
// with a factory that opens a fresh, empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// Factory opens a fresh, empty store. Implementations should register
// cleanup with t.Cleanup.
type Factory func(t *testing.T) payout.Store

const (
	destOne = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	destTwo = "rGWrZyQqhTp9Xu7G5Pkayo7bXjH4k4QYpf"
)

// Run exercises the full Store contract against the given backend.
func Run(t *testing.T, open Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, open) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open) })
	t.Run("ListUnsigned", func(t *testing.T) { testListUnsigned(t, open) })
	t.Run("LifecycleTransitions", func(t *testing.T) { testLifecycle(t, open) })
	t.Run("StateGuards", func(t *testing.T) { testStateGuards(t, open) })
	t.Run("MarkErrorAndAbort", func(t *testing.T) { testErrorAndAbort(t, open) })
	t.Run("HighestSequence", func(t *testing.T) { testHighestSequence(t, open) })
	t.Run("ClearSignedFrom", func(t *testing.T) { testClearSignedFrom(t, open) })
	t.Run("ListRecent", func(t *testing.T) { testListRecent(t, open) })
	t.Run("RowsAreCopies", func(t *testing.T) { testRowsAreCopies(t, open) })
	t.Run("Close", func(t *testing.T) { testClose(t, open) })
}

func insertN(t *testing.T, store payout.Store, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := store.InsertPending(ctx, destOne, payout.NewNativeAmount(int64(1000+i)), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func testInsertAndGet(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Minute)
	amount := payout.NewIssuedAmount("12.5", "USD", destTwo)
	id, err := store.InsertPending(ctx, destOne, amount, "invoice 42")
	require.NoError(t, err)
	require.NotZero(t, id)

	p, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, destOne, p.Destination)
	assert.Equal(t, amount, p.Amount)
	assert.Equal(t, "invoice 42", p.Memo)
	assert.Equal(t, payout.StatePending, p.State)
	assert.Nil(t, p.Sequence)
	assert.Empty(t, p.SignedArtifact)
	assert.False(t, p.CreatedAt.Before(before))
	assert.Nil(t, p.SubmittedAt)
	assert.Nil(t, p.ConfirmedAt)

	second, err := store.InsertPending(ctx, destTwo, payout.NewNativeAmount(1), "")
	require.NoError(t, err)
	assert.Greater(t, second, id, "ids must be assigned in insertion order")
}

func testGetMissing(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	_, err := store.GetPayment(ctx, 9999)
	require.ErrorIs(t, err, payout.ErrNotFound)

	_, err = store.IsAborted(ctx, 9999)
	require.ErrorIs(t, err, payout.ErrNotFound)

	err = store.MarkSigned(ctx, 9999, 1, []byte("blob"))
	require.ErrorIs(t, err, payout.ErrNotFound)
}

func testListUnsigned(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 5)
	require.NoError(t, store.MarkSigned(ctx, ids[1], 100, []byte("blob")))

	rows, err := store.ListUnsigned(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < len(rows); i++ {
		assert.Greater(t, rows[i].ID, rows[i-1].ID, "rows must come back id ascending")
	}

	rows, err = store.ListUnsigned(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ids[0], rows[0].ID)
	assert.Equal(t, ids[2], rows[1].ID)
}

func testLifecycle(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 1)
	id := ids[0]

	require.NoError(t, store.MarkSigned(ctx, id, 42, []byte("artifact")))
	p, err := store.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StateSigned, p.State)
	require.NotNil(t, p.Sequence)
	assert.Equal(t, uint32(42), *p.Sequence)
	assert.Equal(t, []byte("artifact"), p.SignedArtifact)

	signed, err := store.ListSignedUnsubmitted(ctx)
	require.NoError(t, err)
	require.Len(t, signed, 1)

	require.NoError(t, store.MarkSubmitted(ctx, id))
	p, err = store.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StateSubmitted, p.State)
	require.NotNil(t, p.SubmittedAt)

	submitted, err := store.ListSubmittedUnconfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	require.NotNil(t, submitted[0].Sequence)
	assert.NotEmpty(t, submitted[0].SignedArtifact)

	require.NoError(t, store.MarkConfirmed(ctx, id))
	p, err = store.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StateConfirmed, p.State)
	require.NotNil(t, p.ConfirmedAt)

	empty, err := store.ListSignedUnsubmitted(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
	empty, err = store.ListSubmittedUnconfirmed(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testStateGuards(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 2)

	// MarkSubmitted and MarkConfirmed need the preceding state.
	require.ErrorIs(t, store.MarkSubmitted(ctx, ids[0]), payout.ErrStateConflict)
	require.ErrorIs(t, store.MarkConfirmed(ctx, ids[0]), payout.ErrStateConflict)

	require.NoError(t, store.MarkSigned(ctx, ids[0], 7, []byte("a")))
	require.ErrorIs(t, store.MarkSigned(ctx, ids[0], 8, []byte("b")), payout.ErrStateConflict)
	require.ErrorIs(t, store.MarkConfirmed(ctx, ids[0]), payout.ErrStateConflict)

	require.NoError(t, store.MarkSubmitted(ctx, ids[0]))
	require.ErrorIs(t, store.MarkSubmitted(ctx, ids[0]), payout.ErrStateConflict)

	require.NoError(t, store.MarkConfirmed(ctx, ids[0]))

	// Confirmed is terminal for every transition.
	require.ErrorIs(t, store.MarkError(ctx, ids[0], "late", false), payout.ErrStateConflict)
	require.ErrorIs(t, store.MarkAborted(ctx, ids[0]), payout.ErrStateConflict)
	require.ErrorIs(t, store.MarkSigned(ctx, ids[0], 9, []byte("c")), payout.ErrStateConflict)
}

func testErrorAndAbort(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 4)

	// Pending rows abort cleanly.
	require.NoError(t, store.MarkAborted(ctx, ids[0]))
	aborted, err := store.IsAborted(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, aborted)
	require.ErrorIs(t, store.MarkAborted(ctx, ids[0]), payout.ErrStateConflict)

	// Signed and Submitted rows are in flight and refuse the abort.
	require.NoError(t, store.MarkSigned(ctx, ids[1], 10, []byte("a")))
	require.ErrorIs(t, store.MarkAborted(ctx, ids[1]), payout.ErrStateConflict)
	require.NoError(t, store.MarkSubmitted(ctx, ids[1]))
	require.ErrorIs(t, store.MarkAborted(ctx, ids[1]), payout.ErrStateConflict)

	// Non-fatal Error rows can be re-errored, promoted to fatal and aborted.
	require.NoError(t, store.MarkError(ctx, ids[2], "tecPATH_DRY", false))
	p, err := store.GetPayment(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, payout.StateError, p.State)
	assert.Equal(t, "tecPATH_DRY", p.ErrorKind)
	assert.False(t, p.Fatal)
	assert.False(t, p.Terminal())

	require.NoError(t, store.MarkError(ctx, ids[2], "internal", true))
	p, err = store.GetPayment(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, p.Fatal)
	assert.True(t, p.Terminal())

	// Fatal Error rows accept only the operator abort.
	require.ErrorIs(t, store.MarkError(ctx, ids[2], "again", false), payout.ErrStateConflict)
	require.NoError(t, store.MarkAborted(ctx, ids[2]))
	aborted, err = store.IsAborted(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, aborted)

	// A Signed row may still fail permanently.
	require.NoError(t, store.MarkSigned(ctx, ids[3], 11, []byte("b")))
	require.NoError(t, store.MarkError(ctx, ids[3], "temMALFORMED", false))
}

func testHighestSequence(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	_, found, err := store.HighestSequence(ctx)
	require.NoError(t, err)
	assert.False(t, found, "empty store has no highest sequence")

	ids := insertN(t, store, 5)

	// Pending rows never count.
	_, found, err = store.HighestSequence(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.MarkSigned(ctx, ids[0], 100, []byte("a")))
	require.NoError(t, store.MarkSigned(ctx, ids[1], 101, []byte("b")))
	require.NoError(t, store.MarkSigned(ctx, ids[2], 102, []byte("c")))
	require.NoError(t, store.MarkSubmitted(ctx, ids[1]))
	require.NoError(t, store.MarkSubmitted(ctx, ids[2]))
	require.NoError(t, store.MarkConfirmed(ctx, ids[2]))

	highest, found, err := store.HighestSequence(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(102), highest, "Signed, Submitted and Confirmed all count")

	// An errored row's sequence no longer counts.
	require.NoError(t, store.MarkSigned(ctx, ids[3], 103, []byte("d")))
	require.NoError(t, store.MarkError(ctx, ids[3], "tem", false))
	highest, found, err = store.HighestSequence(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(102), highest)
}

func testClearSignedFrom(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 6)

	require.NoError(t, store.MarkSigned(ctx, ids[0], 200, []byte("a")))
	require.NoError(t, store.MarkSubmitted(ctx, ids[0]))
	require.NoError(t, store.MarkConfirmed(ctx, ids[0]))

	require.NoError(t, store.MarkSigned(ctx, ids[1], 201, []byte("b")))
	require.NoError(t, store.MarkSubmitted(ctx, ids[1]))

	require.NoError(t, store.MarkSigned(ctx, ids[2], 202, []byte("c")))
	require.NoError(t, store.MarkSigned(ctx, ids[3], 203, []byte("d")))
	require.NoError(t, store.MarkError(ctx, ids[4], "tec", false))

	demoted, err := store.ClearSignedFrom(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 3, demoted, "Submitted and Signed rows past the cut demote")

	for _, id := range []int64{ids[1], ids[2], ids[3]} {
		p, err := store.GetPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, payout.StatePending, p.State)
		assert.Nil(t, p.Sequence)
		assert.Empty(t, p.SignedArtifact)
		assert.Nil(t, p.SubmittedAt)
	}

	// Confirmed, Error and Pending rows are untouched.
	p, err := store.GetPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, payout.StateConfirmed, p.State)
	p, err = store.GetPayment(ctx, ids[4])
	require.NoError(t, err)
	assert.Equal(t, payout.StateError, p.State)
	p, err = store.GetPayment(ctx, ids[5])
	require.NoError(t, err)
	assert.Equal(t, payout.StatePending, p.State)

	// Cut past the end demotes nothing.
	demoted, err = store.ClearSignedFrom(ctx, ids[5]+100)
	require.NoError(t, err)
	assert.Zero(t, demoted)
}

func testListRecent(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 5)

	rows, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[4], rows[0].ID, "newest first")
	assert.Equal(t, ids[3], rows[1].ID)
	assert.Equal(t, ids[2], rows[2].ID)

	rows, err = store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func testRowsAreCopies(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	ids := insertN(t, store, 1)
	require.NoError(t, store.MarkSigned(ctx, ids[0], 77, []byte("artifact")))

	p, err := store.GetPayment(ctx, ids[0])
	require.NoError(t, err)
	p.State = payout.StateConfirmed
	p.Destination = "mutated"
	*p.Sequence = 9999
	if len(p.SignedArtifact) > 0 {
		p.SignedArtifact[0] = 'X'
	}

	fresh, err := store.GetPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, payout.StateSigned, fresh.State)
	assert.Equal(t, destOne, fresh.Destination)
	assert.Equal(t, uint32(77), *fresh.Sequence)
	assert.Equal(t, []byte("artifact"), fresh.SignedArtifact)
}

func testClose(t *testing.T, open Factory) {
	store := open(t)
	ctx := context.Background()

	insertN(t, store, 1)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")

	_, err := store.InsertPending(ctx, destOne, payout.NewNativeAmount(1), "")
	require.Error(t, err)
	_, err = store.ListUnsigned(ctx, 0)
	require.Error(t, err)
}
