package payout

import (
	"time"
)

// EventType names a payment lifecycle transition.
type EventType string

const (
	EventCreated   EventType = "created"
	EventSigned    EventType = "signed"
	EventSubmitted EventType = "submitted"
	EventConfirmed EventType = "confirmed"
	EventErrored   EventType = "errored"
	EventAborted   EventType = "aborted"
	EventResigned  EventType = "resigned"
	EventWedged    EventType = "wedged"
	EventResumed   EventType = "resumed"
)

// Event is one lifecycle transition, published as it commits. The admin
// feed streams these to connected operators.
type Event struct {
	Type      EventType `json:"type"`
	PaymentID int64     `json:"payment_id,omitempty"`
	Sequence  *uint32   `json:"sequence,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink receives lifecycle events. Publish must not block: a slow
// consumer drops events rather than stalling a tick.
type EventSink interface {
	Publish(Event)
}

type noopSink struct{}

func (noopSink) Publish(Event) {}

// sinkOrNoop lets components hold a sink unconditionally.
func sinkOrNoop(s EventSink) EventSink {
	if s == nil {
		return noopSink{}
	}
	return s
}

func event(t EventType, paymentID int64) Event {
	return Event{Type: t, PaymentID: paymentID, At: time.Now().UTC()}
}
