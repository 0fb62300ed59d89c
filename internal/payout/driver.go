package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxInFlight caps how many rows may sit in Submitted at once.
const DefaultMaxInFlight = 10

// SequenceSigner is the slice of the Signer the driver depends on. Tests
// substitute their own.
type SequenceSigner interface {
	Sequence() (uint32, bool)
	SetSequence(seq uint32)
	Reset()
	SignTransactions(ctx context.Context, limit int) error
}

// Transmitter is the slice of the Submitter the driver depends on.
type Transmitter interface {
	SubmitTransactions(ctx context.Context) error
}

// DriverConfig wires a Driver. Store, Ledger, Signer, Submitter and
// FundingAddress are required.
type DriverConfig struct {
	Store          Store
	Ledger         LedgerClient
	Signer         SequenceSigner
	Submitter      Transmitter
	FundingAddress string

	// MaxInFlight defaults to DefaultMaxInFlight when 0.
	MaxInFlight int

	Events EventSink
	Logger *log.Entry
}

// Validate checks that the required pieces are present.
func (c *DriverConfig) Validate() error {
	if c.Store == nil {
		return errors.New("driver requires a store")
	}
	if c.Ledger == nil {
		return errors.New("driver requires a ledger client")
	}
	if c.Signer == nil {
		return errors.New("driver requires a signer")
	}
	if c.Submitter == nil {
		return errors.New("driver requires a submitter")
	}
	if c.FundingAddress == "" {
		return errors.New("driver requires the funding address")
	}
	if c.MaxInFlight < 0 {
		return errors.New("max in flight must be >= 0")
	}
	return nil
}

// Driver runs the pipeline one guarded tick at a time: check the fatal
// slot, make sure the sequence cursor is initialized, compute the signing
// quota, sign, submit, and classify whatever went wrong.
//
// Exactly one tick executes at a time. Overlapping calls return
// immediately with no side effect. Running two drivers against the same
// funding account is unsupported and corrupts the sequence stream.
type Driver struct {
	mu sync.Mutex // tick guard; TryLock only

	store     Store
	client    LedgerClient
	signer    SequenceSigner
	submitter Transmitter
	account   string

	maxInFlight int

	// fatal wedges the pipeline until the operator aborts the associated
	// row. Only the tick holder touches it.
	fatal *FatalError

	events EventSink
	log    *log.Entry
}

// NewDriver creates a Driver from the config.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight == 0 {
		maxInFlight = DefaultMaxInFlight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Driver{
		store:       cfg.Store,
		client:      cfg.Ledger,
		signer:      cfg.Signer,
		submitter:   cfg.Submitter,
		account:     cfg.FundingAddress,
		maxInFlight: maxInFlight,
		events:      sinkOrNoop(cfg.Events),
		log:         logger.WithField("component", "driver"),
	}, nil
}

// Wedged reports whether the pipeline is stopped on a fatal error, and the
// error itself. Exposed for the admin health endpoint.
func (d *Driver) Wedged() (bool, error) {
	if !d.mu.TryLock() {
		// A tick is running; report the pre-tick state as healthy since
		// a wedged pipeline never holds the guard for long.
		return false, nil
	}
	defer d.mu.Unlock()
	if d.fatal == nil {
		return false, nil
	}
	return true, d.fatal
}

// Tick executes one pipeline pass. If a tick is already running it returns
// nil immediately. Context cancellation aborts between store and network
// operations; transitions committed before the cancel point stay.
func (d *Driver) Tick(ctx context.Context) error {
	if !d.mu.TryLock() {
		return nil
	}
	defer d.mu.Unlock()

	if err := d.checkFatal(ctx); err != nil {
		return err
	}

	return d.classify(ctx, d.runTick(ctx))
}

// runTick is the body: sequence init, quota, sign, submit.
func (d *Driver) runTick(ctx context.Context) error {
	if err := d.ensureSequence(ctx); err != nil {
		return err
	}

	inFlight, err := d.store.ListSubmittedUnconfirmed(ctx)
	if err != nil {
		return fmt.Errorf("counting submitted payments: %w", err)
	}

	quota := d.maxInFlight - len(inFlight)
	if quota > 0 {
		if err := d.signer.SignTransactions(ctx, quota); err != nil {
			return err
		}
	} else {
		d.log.WithFields(log.Fields{
			"in_flight":     len(inFlight),
			"max_in_flight": d.maxInFlight,
		}).Debug("in-flight quota exhausted; skipping signing")
	}

	return d.submitter.SubmitTransactions(ctx)
}

// checkFatal re-surfaces the fatal slot, unless the operator has aborted
// the offending row, in which case the trailing window is resigned and the
// pipeline resumes.
func (d *Driver) checkFatal(ctx context.Context) error {
	if d.fatal == nil {
		return nil
	}

	id := d.fatal.PaymentID
	if id != 0 {
		aborted, err := d.store.IsAborted(ctx, id)
		if err != nil {
			return fmt.Errorf("checking aborted state of payment %d: %w", id, err)
		}
		if aborted {
			d.log.WithField("payment_id", id).Info("operator aborted wedged payment; resuming pipeline")
			row, err := d.store.GetPayment(ctx, id)
			if err != nil {
				return fmt.Errorf("loading aborted payment %d: %w", id, err)
			}
			// The aborted row stays aborted; only rows behind it are
			// demoted.
			if err := d.resign(ctx, row, false, "operator abort"); err != nil {
				return err
			}
			d.fatal = nil
			d.events.Publish(event(EventResumed, id))
			return nil
		}
	}

	return d.fatal
}

// ensureSequence initializes the cursor, preferring the store's view and
// falling back to the ledger only when no signed row exists.
func (d *Driver) ensureSequence(ctx context.Context) error {
	if _, ok := d.signer.Sequence(); ok {
		return nil
	}

	highest, ok, err := d.store.HighestSequence(ctx)
	if err != nil {
		return fmt.Errorf("reading highest stored sequence: %w", err)
	}
	if ok {
		d.signer.SetSequence(highest + 1)
		d.log.WithField("sequence", highest+1).Info("sequence cursor initialized from store")
		return nil
	}

	info, err := d.client.AccountInfo(ctx, d.account)
	if err != nil {
		return err
	}
	d.signer.SetSequence(info.NextSequence)
	d.log.WithFields(log.Fields{
		"sequence": info.NextSequence,
		"account":  d.account,
	}).Info("sequence cursor initialized from ledger")
	return nil
}

// classify routes an error from the tick body: transient failures are
// logged and swallowed, resign signals run recovery, everything else is
// promoted to fatal. Unknown errors fail closed.
func (d *Driver) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if re, ok := AsResign(err); ok {
		d.log.WithFields(log.Fields{
			"payment_id": re.Row.ID,
			"reason":     re.Reason,
		}).Warn("resign required")
		if rerr := d.resign(ctx, re.Row, re.DemoteRow, re.Reason); rerr != nil {
			if IsTransient(rerr) {
				d.log.WithError(rerr).Warn("resign recovery interrupted; retrying next tick")
				return nil
			}
			return d.promote(ctx, rerr)
		}
		return nil
	}

	if IsTransient(err) {
		d.log.WithError(err).Warn("transient failure; retrying next tick")
		return nil
	}

	return d.promote(ctx, err)
}

// resign demotes the trailing in-flight window and refreshes the cursor
// from the ledger. When demoteRow is true the offending row goes back to
// Pending as well; otherwise it keeps its terminal state and only strictly
// later rows are cleared.
func (d *Driver) resign(ctx context.Context, row *Payment, demoteRow bool, reason string) error {
	start := row.ID + 1
	if demoteRow {
		start = row.ID
	}

	demoted, err := d.store.ClearSignedFrom(ctx, start)
	if err != nil {
		return fmt.Errorf("clearing signed window from payment %d: %w", start, err)
	}
	d.log.WithFields(log.Fields{
		"from_payment": start,
		"demoted":      demoted,
		"reason":       reason,
	}).Info("signed window cleared for resign")

	info, err := d.client.AccountInfo(ctx, d.account)
	if err != nil {
		// The window is cleared but the cursor is stale. Drop it so the
		// next tick re-initializes before signing anything.
		d.signer.Reset()
		return err
	}

	// Rows before the cut can still hold sequences the ledger has not
	// seen, e.g. a signed row whose submission never ran. Never hand one
	// of those out twice.
	next := info.NextSequence
	highest, ok, err := d.store.HighestSequence(ctx)
	if err != nil {
		d.signer.Reset()
		return fmt.Errorf("reading highest stored sequence: %w", err)
	}
	if ok && highest+1 > next {
		next = highest + 1
	}
	d.signer.SetSequence(next)

	ev := event(EventResigned, row.ID)
	ev.Detail = reason
	d.events.Publish(ev)
	return nil
}

// promote records err in the fatal slot and parks the associated row.
func (d *Driver) promote(ctx context.Context, err error) error {
	id, _ := PaymentIDOf(err)
	fe := &FatalError{PaymentID: id, Err: err}
	d.fatal = fe

	if id != 0 {
		if merr := d.store.MarkError(ctx, id, fatalKind(err), true); merr != nil {
			d.log.WithError(merr).WithField("payment_id", id).Error("failed to park fatally errored payment")
		}
	}

	d.log.WithError(err).Error("pipeline wedged on fatal error")
	ev := event(EventWedged, id)
	ev.Detail = err.Error()
	d.events.Publish(ev)
	return fe
}

func fatalKind(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Op
	}
	return "internal"
}
