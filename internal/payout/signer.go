package payout

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ArtifactSigner turns a payment plus a sequence number into the signed
// blob the ledger accepts. Implemented by the wallet signer in
// internal/ledger; tests substitute their own.
type ArtifactSigner interface {
	SignPayment(ctx context.Context, p *Payment, sequence uint32) ([]byte, error)
}

// Signer owns the next-sequence cursor and the Pending -> Signed
// transition. The cursor is authoritative only while the driver is active;
// on restart it is rebuilt from the store or the ledger.
//
// Signer is not safe for concurrent use. The driver's tick guard is the
// only serialization it relies on.
type Signer struct {
	store     Store
	artifacts ArtifactSigner
	events    EventSink
	log       *log.Entry

	nextSeq *uint32
}

// NewSigner creates a Signer with an uninitialized cursor.
func NewSigner(store Store, artifacts ArtifactSigner, events EventSink, logger *log.Entry) *Signer {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Signer{
		store:     store,
		artifacts: artifacts,
		events:    sinkOrNoop(events),
		log:       logger.WithField("component", "signer"),
	}
}

// Sequence returns the cursor and whether it is initialized.
func (s *Signer) Sequence() (uint32, bool) {
	if s.nextSeq == nil {
		return 0, false
	}
	return *s.nextSeq, true
}

// SetSequence overrides the cursor. Used by sequence init and by resign
// recovery after the ledger reports a fresh next sequence.
func (s *Signer) SetSequence(seq uint32) {
	s.nextSeq = &seq
	s.log.WithField("sequence", seq).Debug("sequence cursor set")
}

// Reset clears the cursor so the next tick re-initializes it from the
// store or the ledger.
func (s *Signer) Reset() {
	s.nextSeq = nil
}

// SignTransactions reads up to limit Pending rows in id order and stamps
// each with the next sequence number. The cursor advances only after a
// row's transition commits, so a failure on row k leaves rows before k
// signed, rows from k untouched, and the cursor pointing at the first
// unassigned sequence. A batch never commits a sequence gap.
func (s *Signer) SignTransactions(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}
	if s.nextSeq == nil {
		return ErrNoSequence
	}

	rows, err := s.store.ListUnsigned(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing unsigned payments: %w", err)
	}

	for _, p := range rows {
		seq := *s.nextSeq

		artifact, err := s.artifacts.SignPayment(ctx, p, seq)
		if err != nil {
			return &PaymentError{PaymentID: p.ID, Op: "sign", Err: err}
		}

		if err := s.store.MarkSigned(ctx, p.ID, seq, artifact); err != nil {
			return &PaymentError{PaymentID: p.ID, Op: "mark signed", Err: err}
		}

		next := seq + 1
		s.nextSeq = &next

		s.log.WithFields(log.Fields{
			"payment_id": p.ID,
			"sequence":   seq,
			"dest":       p.Destination,
		}).Info("payment signed")

		ev := event(EventSigned, p.ID)
		ev.Sequence = &seq
		s.events.Publish(ev)
	}

	return nil
}
