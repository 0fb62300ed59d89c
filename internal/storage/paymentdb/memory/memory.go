// Package memory provides an in-memory payout.Store. It backs unit
// tests and the backend conformance suite and is useful for throwaway
// local runs; rows do not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// Store is a mutex-guarded map of payment rows.
type Store struct {
	mu     sync.RWMutex
	rows   map[int64]*payout.Payment
	nextID int64
	closed bool
}

var _ payout.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		rows:   make(map[int64]*payout.Payment),
		nextID: 1,
	}
}

// InsertPending adds a new Pending row and returns its id.
func (s *Store) InsertPending(ctx context.Context, dest string, amount payout.Amount, memo string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, payout.ErrStoreClosed
	}

	id := s.nextID
	s.nextID++
	s.rows[id] = &payout.Payment{
		ID:          id,
		Destination: dest,
		Amount:      amount,
		Memo:        memo,
		State:       payout.StatePending,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

// ListUnsigned returns up to limit Pending rows, id ascending.
func (s *Store) ListUnsigned(ctx context.Context, limit int) ([]*payout.Payment, error) {
	return s.listByState(ctx, payout.StatePending, limit)
}

// ListSignedUnsubmitted returns Signed rows, id ascending.
func (s *Store) ListSignedUnsubmitted(ctx context.Context) ([]*payout.Payment, error) {
	return s.listByState(ctx, payout.StateSigned, 0)
}

// ListSubmittedUnconfirmed returns Submitted rows, id ascending.
func (s *Store) ListSubmittedUnconfirmed(ctx context.Context) ([]*payout.Payment, error) {
	return s.listByState(ctx, payout.StateSubmitted, 0)
}

func (s *Store) listByState(ctx context.Context, state payout.State, limit int) ([]*payout.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	var out []*payout.Payment
	for _, p := range s.rows {
		if p.State == state {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkSigned transitions Pending -> Signed, stamping sequence and artifact.
func (s *Store) MarkSigned(ctx context.Context, id int64, seq uint32, artifact []byte) error {
	return s.mutate(ctx, id, func(p *payout.Payment) error {
		if p.State != payout.StatePending {
			return stateConflict(id, "mark signed", p.State)
		}
		p.State = payout.StateSigned
		p.Sequence = &seq
		p.SignedArtifact = append([]byte(nil), artifact...)
		return nil
	})
}

// MarkSubmitted transitions Signed -> Submitted.
func (s *Store) MarkSubmitted(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, func(p *payout.Payment) error {
		if p.State != payout.StateSigned {
			return stateConflict(id, "mark submitted", p.State)
		}
		now := time.Now().UTC()
		p.State = payout.StateSubmitted
		p.SubmittedAt = &now
		return nil
	})
}

// MarkConfirmed transitions Submitted -> Confirmed.
func (s *Store) MarkConfirmed(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, func(p *payout.Payment) error {
		if p.State != payout.StateSubmitted {
			return stateConflict(id, "mark confirmed", p.State)
		}
		now := time.Now().UTC()
		p.State = payout.StateConfirmed
		p.ConfirmedAt = &now
		return nil
	})
}

// MarkError moves any non-terminal row to Error.
func (s *Store) MarkError(ctx context.Context, id int64, kind string, fatal bool) error {
	return s.mutate(ctx, id, func(p *payout.Payment) error {
		if p.Terminal() {
			return stateConflict(id, "mark error", p.State)
		}
		p.State = payout.StateError
		p.ErrorKind = kind
		p.Fatal = fatal
		return nil
	})
}

// MarkAborted moves Pending and Error rows (fatal included) to Aborted.
// Signed and Submitted rows refuse: their transaction is in flight and
// cancelling it would orphan a sequence number.
func (s *Store) MarkAborted(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, func(p *payout.Payment) error {
		if p.State != payout.StatePending && p.State != payout.StateError {
			return stateConflict(id, "mark aborted", p.State)
		}
		p.State = payout.StateAborted
		return nil
	})
}

// IsAborted reports whether the row is Aborted.
func (s *Store) IsAborted(ctx context.Context, id int64) (bool, error) {
	p, err := s.GetPayment(ctx, id)
	if err != nil {
		return false, err
	}
	return p.State == payout.StateAborted, nil
}

// HighestSequence returns the largest stamped sequence across rows in
// state Signed, Submitted or Confirmed.
func (s *Store) HighestSequence(ctx context.Context) (uint32, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, payout.ErrStoreClosed
	}

	var highest uint32
	found := false
	for _, p := range s.rows {
		if p.Sequence == nil {
			continue
		}
		switch p.State {
		case payout.StateSigned, payout.StateSubmitted, payout.StateConfirmed:
			if !found || *p.Sequence > highest {
				highest = *p.Sequence
				found = true
			}
		}
	}
	return highest, found, nil
}

// ClearSignedFrom demotes every Signed or Submitted row with ID >= id back
// to Pending, clearing sequence and artifact, all under one lock hold.
func (s *Store) ClearSignedFrom(ctx context.Context, id int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, payout.ErrStoreClosed
	}

	demoted := 0
	for _, p := range s.rows {
		if p.ID < id {
			continue
		}
		if p.State != payout.StateSigned && p.State != payout.StateSubmitted {
			continue
		}
		p.State = payout.StatePending
		p.Sequence = nil
		p.SignedArtifact = nil
		p.SubmittedAt = nil
		demoted++
	}
	return demoted, nil
}

// GetPayment returns a copy of the row.
func (s *Store) GetPayment(ctx context.Context, id int64) (*payout.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	p, ok := s.rows[id]
	if !ok {
		return nil, notFound(id)
	}
	return clonePayment(p), nil
}

// ListRecent returns up to limit rows, newest id first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*payout.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	out := make([]*payout.Payment, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close marks the store closed and drops all rows. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.rows = make(map[int64]*payout.Payment)
	return nil
}

func (s *Store) mutate(ctx context.Context, id int64, fn func(*payout.Payment) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return payout.ErrStoreClosed
	}

	p, ok := s.rows[id]
	if !ok {
		return notFound(id)
	}
	return fn(p)
}

func clonePayment(p *payout.Payment) *payout.Payment {
	c := *p
	if p.Sequence != nil {
		seq := *p.Sequence
		c.Sequence = &seq
	}
	if p.SignedArtifact != nil {
		c.SignedArtifact = append([]byte(nil), p.SignedArtifact...)
	}
	if p.SubmittedAt != nil {
		t := *p.SubmittedAt
		c.SubmittedAt = &t
	}
	if p.ConfirmedAt != nil {
		t := *p.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

func notFound(id int64) error {
	return fmt.Errorf("payment %d: %w", id, payout.ErrNotFound)
}

func stateConflict(id int64, op string, from payout.State) error {
	return fmt.Errorf("payment %d: %s from state %s: %w", id, op, from, payout.ErrStateConflict)
}
