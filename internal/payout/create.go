package payout

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/LeJamon/goXRPLpay/internal/keys"
)

// MemoMaxBytes caps operator memos well under the ledger's memo wire
// limit once hex expansion and field overhead are accounted for.
const MemoMaxBytes = 256

// CreateRequest carries the operator-supplied fields of a new payout.
type CreateRequest struct {
	Destination string
	Amount      Amount
	Memo        string
}

// Creator is the synchronous operator boundary in front of the store.
// All validation happens here, before a row exists, so the pipeline
// only ever sees well-formed payments.
type Creator struct {
	store   Store
	funding string
	events  EventSink
	log     *log.Entry
}

// NewCreator builds a Creator. fundingAddress may be empty when the
// caller has no funding account context (it disables the self-payment
// check only).
func NewCreator(store Store, fundingAddress string, events EventSink, logger *log.Entry) *Creator {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Creator{
		store:   store,
		funding: fundingAddress,
		events:  sinkOrNoop(events),
		log:     logger.WithField("component", "creator"),
	}
}

// CreatePayment validates req and inserts a Pending row, returning its
// id. Validation failures never touch the store.
func (c *Creator) CreatePayment(ctx context.Context, req CreateRequest) (int64, error) {
	if err := c.validate(req); err != nil {
		return 0, err
	}

	id, err := c.store.InsertPending(ctx, req.Destination, req.Amount, req.Memo)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}

	c.log.WithFields(log.Fields{
		"payment_id": id,
		"dest":       req.Destination,
		"amount":     req.Amount.String(),
	}).Info("payment created")
	c.events.Publish(event(EventCreated, id))

	return id, nil
}

// AbortPayment marks a payment Aborted. This is an operator override
// for rows the pipeline has not put in flight: Pending rows, and Error
// rows including fatal ones, where it doubles as the recovery path out
// of a wedged pipeline (the driver picks the abort up on its next
// tick). Signed and Submitted rows refuse the abort.
func (c *Creator) AbortPayment(ctx context.Context, id int64) error {
	if err := c.store.MarkAborted(ctx, id); err != nil {
		return err
	}

	c.log.WithField("payment_id", id).Warn("payment aborted")
	c.events.Publish(event(EventAborted, id))
	return nil
}

func (c *Creator) validate(req CreateRequest) error {
	if req.Destination == "" {
		return NewValidationError("destination", "destination is required")
	}
	if !keys.IsValidClassicAddress(req.Destination) {
		return NewValidationError("destination", "not a valid classic address")
	}
	// A payment from the funding account to itself is rejected by the
	// ledger as redundant and would churn through resign recovery forever.
	if c.funding != "" && req.Destination == c.funding {
		return NewValidationError("destination", "must differ from the funding account")
	}
	if err := req.Amount.Validate(); err != nil {
		return err
	}
	if !req.Amount.IsNative() && !keys.IsValidClassicAddress(req.Amount.Issuer()) {
		return NewValidationError("issuer", "not a valid classic address")
	}
	if len(req.Memo) > MemoMaxBytes {
		return NewValidationError("memo", fmt.Sprintf("must not exceed %d bytes", MemoMaxBytes))
	}
	return nil
}
