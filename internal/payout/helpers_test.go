package payout_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/paymentdb/memory"
)

const (
	testFunding = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testDest    = "rGWrZyQqhTp9Xu7G5Pkayo7bXjH4k4QYpf"
)

// queuePayments inserts n Pending rows and returns their ids.
func queuePayments(t *testing.T, store payout.Store, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := store.InsertPending(ctx, testDest,
			payout.NewNativeAmount(int64(i+1)*1_000_000), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// requireState asserts a row's lifecycle state.
func requireState(t *testing.T, store payout.Store, id int64, want payout.State) {
	t.Helper()
	p, err := store.GetPayment(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, want, p.State, "payment %d", id)
}

// requireSequence asserts the sequence stamped on a row.
func requireSequence(t *testing.T, store payout.Store, id int64, want uint32) {
	t.Helper()
	p, err := store.GetPayment(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p.Sequence, "payment %d has no sequence", id)
	require.Equal(t, want, *p.Sequence, "payment %d", id)
}

// stubArtifacts is a deterministic payout.ArtifactSigner. Artifacts
// encode the row id and sequence so tests can correlate submissions.
type stubArtifacts struct {
	failOn map[int64]error
	signed []int64
}

func (s *stubArtifacts) SignPayment(ctx context.Context, p *payout.Payment, sequence uint32) ([]byte, error) {
	if err := s.failOn[p.ID]; err != nil {
		return nil, err
	}
	s.signed = append(s.signed, p.ID)
	return artifactFor(p.ID, sequence), nil
}

func artifactFor(id int64, sequence uint32) []byte {
	return []byte(fmt.Sprintf("artifact-%d-seq-%d", id, sequence))
}

// artifactID recovers the row id baked into a stub artifact.
func artifactID(artifact []byte) int64 {
	var id int64
	var seq uint32
	if _, err := fmt.Sscanf(string(artifact), "artifact-%d-seq-%d", &id, &seq); err != nil {
		return 0
	}
	return id
}

// scriptedLedger is a hand-rolled payout.LedgerClient whose behavior is
// injected per test. Zero-value callbacks accept every submission and
// report every confirmation as still pending.
type scriptedLedger struct {
	nextSeq      uint32
	accountErr   error
	accountCalls int

	ledgerIndex uint32

	submit  func(artifact []byte) (payout.SubmitResult, error)
	confirm func(artifact []byte) (payout.ConfirmResult, error)
}

func (l *scriptedLedger) AccountInfo(ctx context.Context, address string) (*payout.AccountInfo, error) {
	l.accountCalls++
	if l.accountErr != nil {
		return nil, l.accountErr
	}
	return &payout.AccountInfo{Address: address, NextSequence: l.nextSeq}, nil
}

func (l *scriptedLedger) Submit(ctx context.Context, artifact []byte) (payout.SubmitResult, error) {
	if l.submit != nil {
		return l.submit(artifact)
	}
	return payout.SubmitResult{Status: payout.SubmitAccepted, EngineResult: "tesSUCCESS"}, nil
}

func (l *scriptedLedger) Confirm(ctx context.Context, artifact []byte) (payout.ConfirmResult, error) {
	if l.confirm != nil {
		return l.confirm(artifact)
	}
	return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
}

func (l *scriptedLedger) LedgerIndex(ctx context.Context) (uint32, error) {
	if l.ledgerIndex == 0 {
		return 1000, nil
	}
	return l.ledgerIndex, nil
}

// submitMatching routes submissions for one row id to a specific result.
func submitMatching(id int64, res payout.SubmitResult) func([]byte) (payout.SubmitResult, error) {
	return func(artifact []byte) (payout.SubmitResult, error) {
		if artifactID(artifact) == id {
			return res, nil
		}
		return payout.SubmitResult{Status: payout.SubmitAccepted, EngineResult: "tesSUCCESS"}, nil
	}
}

// newPipeline wires a real signer, submitter and driver over a memory
// store and the scripted ledger.
func newPipeline(t *testing.T, ledger *scriptedLedger, maxInFlight int) (*memory.Store, *payout.Signer, *payout.Driver) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	signer := payout.NewSigner(store, &stubArtifacts{}, nil, nil)
	submitter := payout.NewSubmitter(store, ledger, nil, nil)
	driver, err := payout.NewDriver(payout.DriverConfig{
		Store:          store,
		Ledger:         ledger,
		Signer:         signer,
		Submitter:      submitter,
		FundingAddress: testFunding,
		MaxInFlight:    maxInFlight,
	})
	require.NoError(t, err)
	return store, signer, driver
}

// seedSigned inserts a row and moves it to Signed with the given sequence.
func seedSigned(t *testing.T, store payout.Store, seq uint32) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.InsertPending(ctx, testDest, payout.NewNativeAmount(1_000_000), "")
	require.NoError(t, err)
	require.NoError(t, store.MarkSigned(ctx, id, seq, artifactFor(id, seq)))
	return id
}

// seedSubmitted inserts a row and moves it all the way to Submitted.
func seedSubmitted(t *testing.T, store payout.Store, seq uint32) int64 {
	t.Helper()
	id := seedSigned(t, store, seq)
	require.NoError(t, store.MarkSubmitted(context.Background(), id))
	return id
}
