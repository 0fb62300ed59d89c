package payout

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Submitter drains signed rows to the network and reconciles submitted
// rows against validated ledgers. Like the Signer it runs only inside the
// driver's tick and needs no locking of its own.
type Submitter struct {
	store  Store
	client LedgerClient
	events EventSink
	log    *log.Entry
}

// NewSubmitter creates a Submitter.
func NewSubmitter(store Store, client LedgerClient, events EventSink, logger *log.Entry) *Submitter {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Submitter{
		store:  store,
		client: client,
		events: sinkOrNoop(events),
		log:    logger.WithField("component", "submitter"),
	}
}

// SubmitTransactions pushes every Signed row to the network in id order,
// then sweeps Submitted rows for confirmation.
//
// A transient outcome stops the batch so the same artifact is retried on
// the next tick. A resign outcome stops the batch and surfaces a
// ResignError: everything signed behind the offending row carries a
// sequence number the ledger will no longer accept. A permanent reject
// parks only its own row when the ledger consumed the sequence; otherwise
// it is treated as a resign.
func (s *Submitter) SubmitTransactions(ctx context.Context) error {
	rows, err := s.store.ListSignedUnsubmitted(ctx)
	if err != nil {
		return fmt.Errorf("listing signed payments: %w", err)
	}

	for _, p := range rows {
		res, err := s.client.Submit(ctx, p.SignedArtifact)
		if err != nil {
			return &PaymentError{PaymentID: p.ID, Op: "submit", Err: err}
		}

		switch res.Status {
		case SubmitAccepted:
			if err := s.store.MarkSubmitted(ctx, p.ID); err != nil {
				return &PaymentError{PaymentID: p.ID, Op: "mark submitted", Err: err}
			}
			s.log.WithFields(log.Fields{
				"payment_id":    p.ID,
				"engine_result": res.EngineResult,
			}).Info("payment submitted")
			s.events.Publish(event(EventSubmitted, p.ID))

		case SubmitTransient:
			// Leave the row Signed; the same blob goes out next tick.
			return NewTransientError("submit", p.ID, errors.New(res.Reason))

		case SubmitResign:
			return &ResignError{Row: p, DemoteRow: true, Reason: res.Reason}

		case SubmitReject:
			kind := res.EngineResult
			if kind == "" {
				kind = res.Reason
			}
			if err := s.store.MarkError(ctx, p.ID, kind, false); err != nil {
				return &PaymentError{PaymentID: p.ID, Op: "mark error", Err: err}
			}
			s.log.WithFields(log.Fields{
				"payment_id":    p.ID,
				"engine_result": res.EngineResult,
				"reason":        res.Reason,
			}).Warn("payment rejected by ledger")
			ev := event(EventErrored, p.ID)
			ev.Kind = kind
			s.events.Publish(ev)

			if res.Invalidating {
				// The row stays parked; only the trailing window is
				// cleared.
				return &ResignError{Row: p, DemoteRow: false, Reason: res.Reason}
			}

		default:
			return &PaymentError{PaymentID: p.ID, Op: "submit",
				Err: fmt.Errorf("unhandled submit status %d", res.Status)}
		}
	}

	return s.sweepConfirmations(ctx)
}

// sweepConfirmations checks every Submitted row against validated ledgers.
func (s *Submitter) sweepConfirmations(ctx context.Context) error {
	rows, err := s.store.ListSubmittedUnconfirmed(ctx)
	if err != nil {
		return fmt.Errorf("listing submitted payments: %w", err)
	}

	for _, p := range rows {
		res, err := s.client.Confirm(ctx, p.SignedArtifact)
		if err != nil {
			return &PaymentError{PaymentID: p.ID, Op: "confirm", Err: err}
		}

		switch res.Status {
		case ConfirmValidated:
			if err := s.store.MarkConfirmed(ctx, p.ID); err != nil {
				return &PaymentError{PaymentID: p.ID, Op: "mark confirmed", Err: err}
			}
			s.log.WithFields(log.Fields{
				"payment_id":    p.ID,
				"engine_result": res.EngineResult,
			}).Info("payment confirmed")
			s.events.Publish(event(EventConfirmed, p.ID))

		case ConfirmLost:
			// The ledger window passed without the transaction landing.
			// The row's sequence may be reusable, so re-sign it and
			// everything behind it.
			return &ResignError{Row: p, DemoteRow: true, Reason: "ledger window passed without validation"}

		case ConfirmPending:
			// Still within its window.

		default:
			return &PaymentError{PaymentID: p.ID, Op: "confirm",
				Err: fmt.Errorf("unhandled confirm status %d", res.Status)}
		}
	}

	return nil
}
