package payout

import (
	"context"
)

// Store is the durable repository for payment rows. Every operation is
// atomic: state guards are checked and applied in the same transaction, and
// ClearSignedFrom demotes its whole window or nothing.
//
// Implementations live in internal/storage/paymentdb. The pipeline treats
// the store as the single source of durable truth; everything in memory is
// reconstructible from it.
type Store interface {
	// InsertPending creates a payment in state Pending and returns its id.
	// Ids are assigned monotonically and order the whole pipeline.
	InsertPending(ctx context.Context, destination string, amount Amount, memo string) (int64, error)

	// ListUnsigned returns up to limit Pending rows, lowest id first.
	ListUnsigned(ctx context.Context, limit int) ([]*Payment, error)

	// ListSignedUnsubmitted returns all Signed rows, id ascending.
	ListSignedUnsubmitted(ctx context.Context) ([]*Payment, error)

	// ListSubmittedUnconfirmed returns all Submitted rows, id ascending.
	ListSubmittedUnconfirmed(ctx context.Context) ([]*Payment, error)

	// MarkSigned stamps the sequence number and signed artifact on a
	// Pending row and moves it to Signed. Returns ErrStateConflict if the
	// row is in any other state.
	MarkSigned(ctx context.Context, id int64, sequence uint32, artifact []byte) error

	// MarkSubmitted moves a Signed row to Submitted and records the time.
	MarkSubmitted(ctx context.Context, id int64) error

	// MarkConfirmed moves a Submitted row to Confirmed and records the
	// time. Confirmed is terminal.
	MarkConfirmed(ctx context.Context, id int64) error

	// MarkError parks a row with an error kind. Allowed from any state
	// except Confirmed, Aborted, and an already-fatal Error.
	MarkError(ctx context.Context, id int64, kind string, fatal bool) error

	// MarkAborted is the operator override: Pending and Error rows move
	// to Aborted, including fatally errored rows. Signed and Submitted
	// rows refuse with ErrStateConflict; their transaction is already in
	// flight and cancelling it would orphan a sequence number.
	MarkAborted(ctx context.Context, id int64) error

	// IsAborted reports whether the row is in state Aborted.
	IsAborted(ctx context.Context, id int64) (bool, error)

	// HighestSequence returns the largest stamped sequence across rows in
	// state Signed, Submitted or Confirmed. The second result is false
	// when no such row exists.
	HighestSequence(ctx context.Context) (uint32, bool, error)

	// ClearSignedFrom demotes every row with id >= the given id that is in
	// state Signed or Submitted back to Pending, clearing the sequence and
	// artifact, all in one transaction. Returns the number of rows
	// demoted.
	ClearSignedFrom(ctx context.Context, id int64) (int, error)

	// GetPayment returns one row by id, or ErrNotFound.
	GetPayment(ctx context.Context, id int64) (*Payment, error)

	// ListRecent returns up to limit rows, highest id first. Operator
	// surface only; the pipeline never calls it.
	ListRecent(ctx context.Context, limit int) ([]*Payment, error)

	// Close releases the underlying storage.
	Close() error
}
