package payout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/memory"
)

func TestSignerCursor(t *testing.T) {
	signer := payout.NewSigner(memory.New(), &stubArtifacts{}, nil, nil)

	_, ok := signer.Sequence()
	require.False(t, ok)

	signer.SetSequence(42)
	seq, ok := signer.Sequence()
	require.True(t, ok)
	require.Equal(t, uint32(42), seq)

	signer.Reset()
	_, ok = signer.Sequence()
	require.False(t, ok)
}

func TestSignTransactionsStampsConsecutiveSequences(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	artifacts := &stubArtifacts{}
	signer := payout.NewSigner(store, artifacts, nil, nil)

	ids := queuePayments(t, store, 3)
	signer.SetSequence(100)

	require.NoError(t, signer.SignTransactions(ctx, 10))

	// Id order, consecutive sequences, cursor past the last one.
	require.Equal(t, ids, artifacts.signed)
	for i, id := range ids {
		requireState(t, store, id, payout.StateSigned)
		requireSequence(t, store, id, uint32(100+i))
	}
	seq, ok := signer.Sequence()
	require.True(t, ok)
	require.Equal(t, uint32(103), seq)
}

func TestSignTransactionsHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	signer := payout.NewSigner(store, &stubArtifacts{}, nil, nil)

	ids := queuePayments(t, store, 5)
	signer.SetSequence(10)

	require.NoError(t, signer.SignTransactions(ctx, 2))

	requireState(t, store, ids[0], payout.StateSigned)
	requireState(t, store, ids[1], payout.StateSigned)
	for _, id := range ids[2:] {
		requireState(t, store, id, payout.StatePending)
	}
}

func TestSignTransactionsZeroLimitIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	artifacts := &stubArtifacts{}
	signer := payout.NewSigner(store, artifacts, nil, nil)

	queuePayments(t, store, 2)
	signer.SetSequence(1)

	require.NoError(t, signer.SignTransactions(ctx, 0))
	require.NoError(t, signer.SignTransactions(ctx, -1))
	require.Empty(t, artifacts.signed)
}

func TestSignTransactionsRequiresCursor(t *testing.T) {
	store := memory.New()
	signer := payout.NewSigner(store, &stubArtifacts{}, nil, nil)
	queuePayments(t, store, 1)

	err := signer.SignTransactions(context.Background(), 5)
	require.ErrorIs(t, err, payout.ErrNoSequence)
}

// A failure on row k must leave rows before k signed with consecutive
// sequences, rows from k untouched, and the cursor at the first
// unassigned sequence. No committed gap, ever.
func TestSignTransactionsMidBatchFailureLeavesNoGap(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	artifacts := &stubArtifacts{}
	signer := payout.NewSigner(store, artifacts, nil, nil)

	ids := queuePayments(t, store, 3)
	artifacts.failOn = map[int64]error{ids[1]: errors.New("hsm unavailable")}
	signer.SetSequence(200)

	err := signer.SignTransactions(ctx, 10)
	require.Error(t, err)

	var pe *payout.PaymentError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ids[1], pe.PaymentID)

	requireState(t, store, ids[0], payout.StateSigned)
	requireSequence(t, store, ids[0], 200)
	requireState(t, store, ids[1], payout.StatePending)
	requireState(t, store, ids[2], payout.StatePending)

	// Cursor points at the sequence the failed row would have taken.
	seq, ok := signer.Sequence()
	require.True(t, ok)
	require.Equal(t, uint32(201), seq)

	// Retrying resumes exactly where the batch stopped.
	artifacts.failOn = nil
	require.NoError(t, signer.SignTransactions(ctx, 10))
	requireSequence(t, store, ids[1], 201)
	requireSequence(t, store, ids[2], 202)
}

func TestSignTransactionsPublishesEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sink := &captureSink{}
	signer := payout.NewSigner(store, &stubArtifacts{}, sink, nil)

	ids := queuePayments(t, store, 2)
	signer.SetSequence(7)
	require.NoError(t, signer.SignTransactions(ctx, 10))

	require.Len(t, sink.events, 2)
	for i, ev := range sink.events {
		require.Equal(t, payout.EventSigned, ev.Type)
		require.Equal(t, ids[i], ev.PaymentID)
		require.NotNil(t, ev.Sequence)
		require.Equal(t, uint32(7+i), *ev.Sequence)
	}
}

// captureSink records published events in order.
type captureSink struct {
	events []payout.Event
}

func (s *captureSink) Publish(ev payout.Event) {
	s.events = append(s.events, ev)
}
