// Package kv implements payout.Store on an embedded kvdb database
// (pebble or leveldb). Rows are CBOR-encoded under id-ordered keys, so
// the listing queries are prefix scans, and large signed artifacts are
// lz4-compressed at rest.
package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/LeJamon/goXRPLpay/internal/payout"
	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb"
)

var (
	rowPrefix    = []byte("p/")
	rowPrefixEnd = []byte("p0") // '0' is '/'+1; [p/, p0) covers all rows
	nextIDKey    = []byte("m/next_id")
)

var cborHandle = new(codec.CborHandle)

// record is the persisted form of a payment row. Artifacts at or above
// the compression threshold are lz4 block-compressed; ArtifactRawLen
// keeps the size needed to decompress.
type record struct {
	ID          int64
	Destination string
	Native      bool
	Drops       int64
	Value       string
	Currency    string
	Issuer      string
	Memo        string

	State    int
	Sequence *uint32

	Artifact           []byte
	ArtifactCompressed bool
	ArtifactRawLen     int

	ErrorKind string
	Fatal     bool

	CreatedAt   time.Time
	SubmittedAt *time.Time
	ConfirmedAt *time.Time
}

// Store is a kvdb-backed payout.Store. The mutex serializes id
// allocation and read-modify-write transitions; each committed
// transition is a single atomic batch.
type Store struct {
	mu sync.Mutex
	db kvdb.DB

	closed bool
}

var _ payout.Store = (*Store)(nil)

// New wraps an open kvdb database. The caller keeps ownership of db
// until Close.
func New(db kvdb.DB) *Store {
	return &Store{db: db}
}

// InsertPending creates a Pending row and returns its id. The row and
// the advanced id counter commit in one batch.
func (s *Store) InsertPending(ctx context.Context, dest string, amount payout.Amount, memo string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, payout.ErrStoreClosed
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}

	rec := &record{
		ID:          id,
		Destination: dest,
		Native:      amount.IsNative(),
		Drops:       amount.Drops(),
		Currency:    amount.Currency(),
		Issuer:      amount.Issuer(),
		Memo:        memo,
		State:       int(payout.StatePending),
		CreatedAt:   time.Now().UTC(),
	}
	if !amount.IsNative() {
		rec.Value = amount.Value()
	}

	encoded, err := encodeRecord(rec)
	if err != nil {
		return 0, err
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(id)+1)
	err = s.db.Batch(ctx, []kvdb.BatchOperation{
		kvdb.Put(rowKey(id), encoded),
		kvdb.Put(nextIDKey, counter[:]),
	})
	if err != nil {
		return 0, fmt.Errorf("inserting payment: %w", err)
	}
	return id, nil
}

// ListUnsigned returns up to limit Pending rows, lowest id first.
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

// MarkSigned transitions Pending -> Signed.
func (s *Store) MarkSigned(ctx context.Context, id int64, seq uint32, artifact []byte) error {
	return s.mutate(ctx, id, "mark signed", func(rec *record) error {
		if payout.State(rec.State) != payout.StatePending {
			return stateConflict(id, "mark signed", payout.State(rec.State))
		}
		rec.State = int(payout.StateSigned)
		rec.Sequence = &seq
		rec.setArtifact(artifact)
		return nil
	})
}

// MarkSubmitted transitions Signed -> Submitted.
func (s *Store) MarkSubmitted(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, "mark submitted", func(rec *record) error {
		if payout.State(rec.State) != payout.StateSigned {
			return stateConflict(id, "mark submitted", payout.State(rec.State))
		}
		now := time.Now().UTC()
		rec.State = int(payout.StateSubmitted)
		rec.SubmittedAt = &now
		return nil
	})
}

// MarkConfirmed transitions Submitted -> Confirmed.
func (s *Store) MarkConfirmed(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, "mark confirmed", func(rec *record) error {
		if payout.State(rec.State) != payout.StateSubmitted {
			return stateConflict(id, "mark confirmed", payout.State(rec.State))
		}
		now := time.Now().UTC()
		rec.State = int(payout.StateConfirmed)
		rec.ConfirmedAt = &now
		return nil
	})
}

// MarkError parks any non-terminal row with an error kind.
func (s *Store) MarkError(ctx context.Context, id int64, kind string, fatal bool) error {
	return s.mutate(ctx, id, "mark error", func(rec *record) error {
		state := payout.State(rec.State)
		terminal := state == payout.StateConfirmed || state == payout.StateAborted ||
			(state == payout.StateError && rec.Fatal)
		if terminal {
			return stateConflict(id, "mark error", state)
		}
		rec.State = int(payout.StateError)
		rec.ErrorKind = kind
		rec.Fatal = fatal
		return nil
	})
}

// MarkAborted moves Pending and Error rows (fatal included) to Aborted.
func (s *Store) MarkAborted(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, "mark aborted", func(rec *record) error {
		state := payout.State(rec.State)
		if state != payout.StatePending && state != payout.StateError {
			return stateConflict(id, "mark aborted", state)
		}
		rec.State = int(payout.StateAborted)
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, payout.ErrStoreClosed
	}

	var highest uint32
	found := false
	err := s.scan(ctx, func(rec *record) error {
		if rec.Sequence == nil {
			return nil
		}
		switch payout.State(rec.State) {
		case payout.StateSigned, payout.StateSubmitted, payout.StateConfirmed:
			if !found || *rec.Sequence > highest {
				highest = *rec.Sequence
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return highest, found, nil
}

// ClearSignedFrom demotes every Signed or Submitted row with id >= the
// given id back to Pending. All demotions commit in one batch.
func (s *Store) ClearSignedFrom(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, payout.ErrStoreClosed
	}

	var ops []kvdb.BatchOperation
	err := s.scan(ctx, func(rec *record) error {
		if rec.ID < id {
			return nil
		}
		state := payout.State(rec.State)
		if state != payout.StateSigned && state != payout.StateSubmitted {
			return nil
		}
		rec.State = int(payout.StatePending)
		rec.Sequence = nil
		rec.setArtifact(nil)
		rec.SubmittedAt = nil

		encoded, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		ops = append(ops, kvdb.Put(rowKey(rec.ID), encoded))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := s.db.Batch(ctx, ops); err != nil {
		return 0, fmt.Errorf("demoting signed window: %w", err)
	}
	return len(ops), nil
}

// GetPayment returns one row by id.
func (s *Store) GetPayment(ctx context.Context, id int64) (*payout.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	rec, err := s.readRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.payment()
}

// ListRecent returns up to limit rows, newest id first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*payout.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	var out []*payout.Payment
	err := s.scan(ctx, func(rec *record) error {
		p, err := rec.payment()
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close closes the underlying database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	raw, err := s.db.Read(ctx, nextIDKey)
	if errors.Is(err, kvdb.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading id counter: %w", err)
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

func (s *Store) mutate(ctx context.Context, id int64, op string, fn func(*record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return payout.ErrStoreClosed
	}

	rec, err := s.readRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}

	encoded, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.db.Write(ctx, rowKey(id), encoded); err != nil {
		return fmt.Errorf("%s: payment %d: %w", op, id, err)
	}
	return nil
}

func (s *Store) readRecord(ctx context.Context, id int64) (*record, error) {
	raw, err := s.db.Read(ctx, rowKey(id))
	if errors.Is(err, kvdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("payment %d: %w", id, payout.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payment %d: %w", id, err)
	}
	return decodeRecord(raw)
}

// scan walks every row in id order. Keys are big-endian ids, so the
// iterator's key order is id order.
func (s *Store) scan(ctx context.Context, fn func(*record) error) error {
	iter, err := s.db.Iterator(ctx, rowPrefix, rowPrefixEnd)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) listByState(ctx context.Context, state payout.State, limit int) ([]*payout.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, payout.ErrStoreClosed
	}

	var out []*payout.Payment
	err := s.scan(ctx, func(rec *record) error {
		if payout.State(rec.State) != state {
			return nil
		}
		if limit > 0 && len(out) == limit {
			return nil
		}
		p, err := rec.payment()
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func rowKey(id int64) []byte {
	key := make([]byte, len(rowPrefix)+8)
	copy(key, rowPrefix)
	binary.BigEndian.PutUint64(key[len(rowPrefix):], uint64(id))
	return key
}

func encodeRecord(rec *record) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, cborHandle).Encode(rec); err != nil {
		return nil, fmt.Errorf("encoding payment %d: %w", rec.ID, err)
	}
	return out, nil
}

func decodeRecord(raw []byte) (*record, error) {
	rec := new(record)
	if err := codec.NewDecoderBytes(raw, cborHandle).Decode(rec); err != nil {
		return nil, fmt.Errorf("decoding payment row: %w", err)
	}
	return rec, nil
}

func (rec *record) payment() (*payout.Payment, error) {
	p := &payout.Payment{
		ID:          rec.ID,
		Destination: rec.Destination,
		Memo:        rec.Memo,
		State:       payout.State(rec.State),
		ErrorKind:   rec.ErrorKind,
		Fatal:       rec.Fatal,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.Native {
		p.Amount = payout.NewNativeAmount(rec.Drops)
	} else {
		p.Amount = payout.NewIssuedAmount(rec.Value, rec.Currency, rec.Issuer)
	}
	if rec.Sequence != nil {
		seq := *rec.Sequence
		p.Sequence = &seq
	}
	artifact, err := rec.artifact()
	if err != nil {
		return nil, err
	}
	p.SignedArtifact = artifact
	if rec.SubmittedAt != nil {
		t := *rec.SubmittedAt
		p.SubmittedAt = &t
	}
	if rec.ConfirmedAt != nil {
		t := *rec.ConfirmedAt
		p.ConfirmedAt = &t
	}
	return p, nil
}

func stateConflict(id int64, op string, from payout.State) error {
	return fmt.Errorf("payment %d: %s from state %s: %w", id, op, from, payout.ErrStateConflict)
}
