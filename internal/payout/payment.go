package payout

import (
	"time"
)

// State is the lifecycle state of a payment row.
type State int

const (
	// StatePending is the initial state: queued, not yet signed.
	StatePending State = iota

	// StateSigned means a sequence number has been stamped and a signed
	// artifact persisted, but nothing has been sent to the network.
	StateSigned

	// StateSubmitted means the artifact was accepted by the network for
	// processing; confirmation in a validated ledger is still outstanding.
	StateSubmitted

	// StateConfirmed means the transaction appeared in a validated ledger.
	// Terminal.
	StateConfirmed

	// StateError means the payment is parked with an error kind. Fatal
	// errors wedge the pipeline until the operator aborts the row.
	StateError

	// StateAborted is set by the operator. The driver treats it as the
	// signal to resign the trailing in-flight window.
	StateAborted
)

// String returns the lowercase name used in logs and the store.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateError:
		return "error"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// InFlight reports whether a row in this state is consuming a sequence
// number the ledger has not yet confirmed.
func (s State) InFlight() bool {
	return s == StateSigned || s == StateSubmitted
}

// Payment is one intended transfer from the funding account.
//
// ID is assigned by the store on insert and is the ordering key for every
// pipeline operation: rows are signed and submitted in strict id-ascending
// order, and sequence numbers are strictly increasing with id across all
// rows that hold one.
type Payment struct {
	ID          int64
	Destination string
	Amount      Amount
	Memo        string

	State State

	// Sequence is stamped on the Pending -> Signed transition and cleared
	// only when a resign demotes the row back to Pending.
	Sequence *uint32

	// SignedArtifact is the opaque signed transaction blob. Present iff
	// the row has been signed and not demoted since.
	SignedArtifact []byte

	ErrorKind string
	Fatal     bool

	CreatedAt   time.Time
	SubmittedAt *time.Time
	ConfirmedAt *time.Time
}

// Terminal reports whether the pipeline itself will never move the row
// again. The operator can still abort a fatally errored row.
func (p *Payment) Terminal() bool {
	switch p.State {
	case StateConfirmed, StateAborted:
		return true
	case StateError:
		return p.Fatal
	default:
		return false
	}
}

// SequenceValue returns the stamped sequence and whether one is present.
func (p *Payment) SequenceValue() (uint32, bool) {
	if p.Sequence == nil {
		return 0, false
	}
	return *p.Sequence, true
}
