package payout

import (
	"context"
)

// SubmitStatus classifies the ledger's response to a submission.
type SubmitStatus int

const (
	// SubmitAccepted: the network took the artifact; it should appear in a
	// validated ledger within the artifact's ledger window.
	SubmitAccepted SubmitStatus = iota

	// SubmitTransient: the artifact was not accepted this time but may be
	// on a later attempt, unchanged. Network faults and busy responses.
	SubmitTransient

	// SubmitResign: the ledger will never accept this artifact as signed.
	// The row and everything in flight behind it must be re-signed.
	SubmitResign

	// SubmitReject: the ledger definitively rejected the payment itself.
	// The row is parked; whether later rows survive depends on
	// SubmitResult.Invalidating.
	SubmitReject
)

// String returns the lowercase name used in logs.
func (s SubmitStatus) String() string {
	switch s {
	case SubmitAccepted:
		return "accepted"
	case SubmitTransient:
		return "transient"
	case SubmitResign:
		return "resign"
	case SubmitReject:
		return "reject"
	default:
		return "unknown"
	}
}

// SubmitResult is the classified outcome of one submission.
type SubmitResult struct {
	Status SubmitStatus

	// EngineResult is the raw result code reported by the ledger, when one
	// was received ("tesSUCCESS", "tecUNFUNDED_PAYMENT", ...).
	EngineResult string

	// Reason is a human-readable explanation for non-accepted outcomes.
	Reason string

	// Invalidating is meaningful only for SubmitReject: true when the
	// reject also poisons the sequence chain behind the row, so the
	// trailing window must be re-signed.
	Invalidating bool
}

// ConfirmStatus classifies a confirmation lookup for a submitted artifact.
type ConfirmStatus int

const (
	// ConfirmPending: not yet in a validated ledger, still within its
	// ledger window.
	ConfirmPending ConfirmStatus = iota

	// ConfirmValidated: the transaction appeared in a validated ledger.
	ConfirmValidated

	// ConfirmLost: the ledger window passed without the transaction
	// appearing; it will never be applied as signed.
	ConfirmLost
)

// String returns the lowercase name used in logs.
func (s ConfirmStatus) String() string {
	switch s {
	case ConfirmPending:
		return "pending"
	case ConfirmValidated:
		return "validated"
	case ConfirmLost:
		return "lost"
	default:
		return "unknown"
	}
}

// ConfirmResult is the classified outcome of one confirmation lookup.
type ConfirmResult struct {
	Status ConfirmStatus

	// EngineResult is the result code the transaction validated with, set
	// when Status is ConfirmValidated.
	EngineResult string
}

// AccountInfo is the ledger's view of the funding account.
type AccountInfo struct {
	Address string

	// NextSequence is the sequence number the next transaction from this
	// account must carry.
	NextSequence uint32

	// BalanceDrops is the spendable balance, for logging.
	BalanceDrops int64
}

//go:generate mockgen -destination=mocks/mock_ledger.go -package=mocks github.com/LeJamon/goXRPLpay/internal/payout LedgerClient

// LedgerClient is the pipeline's window on the ledger network. The
// implementation owns the mapping from raw protocol responses to the
// classified outcomes; the pipeline never sees transport detail.
//
// Submit and Confirm fold network faults into their result types and
// return errors only for context cancellation. AccountInfo and LedgerIndex
// wrap network faults as TransientError.
type LedgerClient interface {
	// AccountInfo fetches the account state, including the next usable
	// sequence number.
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// Submit pushes a signed artifact to the network and classifies the
	// response.
	Submit(ctx context.Context, artifact []byte) (SubmitResult, error)

	// Confirm checks whether a previously submitted artifact has reached a
	// validated ledger.
	Confirm(ctx context.Context, artifact []byte) (ConfirmResult, error)

	// LedgerIndex returns the latest validated ledger index.
	LedgerIndex(ctx context.Context) (uint32, error)
}
