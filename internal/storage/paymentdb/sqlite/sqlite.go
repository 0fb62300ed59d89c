// Package sqlite implements payout.Store on modernc.org/sqlite, a
// pure-Go driver. It is the default backend: one file, no server, and
// durable enough for a single-driver pipeline.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// Store is a SQLite-backed payout.Store.
type Store struct {
	db *sql.DB
}

var _ payout.Store = (*Store)(nil)

// Open opens (creating if needed) the database file and initializes the
// schema. WAL mode keeps reads from blocking the single writer.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store requires a database path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database at %s: %w", path, err)
	}

	// SQLite allows one writer; funneling everything through one
	// connection avoids SQLITE_BUSY instead of retrying around it.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing payments schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=FULL`,
		`PRAGMA foreign_keys=ON`,
		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			destination TEXT NOT NULL,
			amount_native INTEGER NOT NULL,
			amount_drops INTEGER NOT NULL DEFAULT 0,
			amount_value TEXT NOT NULL DEFAULT '',
			amount_currency TEXT NOT NULL DEFAULT '',
			amount_issuer TEXT NOT NULL DEFAULT '',
			memo TEXT NOT NULL DEFAULT '',
			state INTEGER NOT NULL DEFAULT 0,
			sequence INTEGER,
			signed_artifact BLOB,
			error_kind TEXT NOT NULL DEFAULT '',
			fatal INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			submitted_at TIMESTAMP,
			confirmed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_state_id ON payments (state, id)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const paymentColumns = `id, destination, amount_native, amount_drops, amount_value,
	amount_currency, amount_issuer, memo, state, sequence, signed_artifact,
	error_kind, fatal, created_at, submitted_at, confirmed_at`

// InsertPending creates a Pending row and returns its id.
func (s *Store) InsertPending(ctx context.Context, dest string, amount payout.Amount, memo string) (int64, error) {
	if s.db == nil {
		return 0, payout.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (destination, amount_native, amount_drops, amount_value,
			amount_currency, amount_issuer, memo, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dest, amount.IsNative(), amount.Drops(), issuedValue(amount),
		amount.Currency(), amount.Issuer(), memo, int(payout.StatePending),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListUnsigned returns up to limit Pending rows, lowest id first.
func (s *Store) ListUnsigned(ctx context.Context, limit int) ([]*payout.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE state = ? ORDER BY id ASC`
	args := []any{int(payout.StatePending)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.list(ctx, query, args...)
}

// ListSignedUnsubmitted returns Signed rows, id ascending.
func (s *Store) ListSignedUnsubmitted(ctx context.Context) ([]*payout.Payment, error) {
	return s.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE state = ? ORDER BY id ASC`,
		int(payout.StateSigned))
}

// ListSubmittedUnconfirmed returns Submitted rows, id ascending.
func (s *Store) ListSubmittedUnconfirmed(ctx context.Context) ([]*payout.Payment, error) {
	return s.list(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE state = ? ORDER BY id ASC`,
		int(payout.StateSubmitted))
}

// MarkSigned transitions Pending -> Signed.
func (s *Store) MarkSigned(ctx context.Context, id int64, seq uint32, artifact []byte) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE payments SET state = ?, sequence = ?, signed_artifact = ?
		 WHERE id = ? AND state = ?`,
		int(payout.StateSigned), int64(seq), artifact, id, int(payout.StatePending))
}

// MarkSubmitted transitions Signed -> Submitted.
func (s *Store) MarkSubmitted(ctx context.Context, id int64) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE payments SET state = ?, submitted_at = ?
		 WHERE id = ? AND state = ?`,
		int(payout.StateSubmitted), time.Now().UTC(), id, int(payout.StateSigned))
}

// MarkConfirmed transitions Submitted -> Confirmed.
func (s *Store) MarkConfirmed(ctx context.Context, id int64) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE payments SET state = ?, confirmed_at = ?
		 WHERE id = ? AND state = ?`,
		int(payout.StateConfirmed), time.Now().UTC(), id, int(payout.StateSubmitted))
}

// MarkError parks any non-terminal row with an error kind.
func (s *Store) MarkError(ctx context.Context, id int64, kind string, fatal bool) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE payments SET state = ?, error_kind = ?, fatal = ?
		 WHERE id = ?
		   AND state NOT IN (?, ?)
		   AND NOT (state = ? AND fatal)`,
		int(payout.StateError), kind, fatal, id,
		int(payout.StateConfirmed), int(payout.StateAborted), int(payout.StateError))
}

// MarkAborted moves Pending and Error rows (fatal included) to Aborted.
func (s *Store) MarkAborted(ctx context.Context, id int64) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE payments SET state = ?
		 WHERE id = ? AND state IN (?, ?)`,
		int(payout.StateAborted), id, int(payout.StatePending), int(payout.StateError))
}

// IsAborted reports whether the row is Aborted.
func (s *Store) IsAborted(ctx context.Context, id int64) (bool, error) {
	if s.db == nil {
		return false, payout.ErrStoreClosed
	}

	var state int
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM payments WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("payment %d: %w", id, payout.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("reading payment %d: %w", id, err)
	}
	return payout.State(state) == payout.StateAborted, nil
}

// HighestSequence returns the largest stamped sequence across rows in
// state Signed, Submitted or Confirmed.
func (s *Store) HighestSequence(ctx context.Context) (uint32, bool, error) {
	if s.db == nil {
		return 0, false, payout.ErrStoreClosed
	}

	var highest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM payments WHERE state IN (?, ?, ?)`,
		int(payout.StateSigned), int(payout.StateSubmitted), int(payout.StateConfirmed),
	).Scan(&highest)
	if err != nil {
		return 0, false, fmt.Errorf("reading highest sequence: %w", err)
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return uint32(highest.Int64), true, nil
}

// ClearSignedFrom demotes every Signed or Submitted row with id >= the
// given id back to Pending inside one transaction.
func (s *Store) ClearSignedFrom(ctx context.Context, id int64) (int, error) {
	if s.db == nil {
		return 0, payout.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning resign transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET state = ?, sequence = NULL, signed_artifact = NULL, submitted_at = NULL
		 WHERE id >= ? AND state IN (?, ?)`,
		int(payout.StatePending), id, int(payout.StateSigned), int(payout.StateSubmitted))
	if err != nil {
		return 0, fmt.Errorf("demoting signed window: %w", err)
	}
	demoted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing resign transaction: %w", err)
	}
	return int(demoted), nil
}

// GetPayment returns one row by id.
func (s *Store) GetPayment(ctx context.Context, id int64) (*payout.Payment, error) {
	if s.db == nil {
		return nil, payout.ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, payout.ErrNotFound)
	}
	return p, err
}

// ListRecent returns up to limit rows, newest id first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*payout.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.list(ctx, query, args...)
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) guardedUpdate(ctx context.Context, id int64, query string, args ...any) error {
	if s.db == nil {
		return payout.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var state int
	err = s.db.QueryRowContext(ctx, `SELECT state FROM payments WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("payment %d: %w", id, payout.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading payment %d: %w", id, err)
	}
	return fmt.Errorf("payment %d in state %s: %w", id, payout.State(state), payout.ErrStateConflict)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*payout.Payment, error) {
	if s.db == nil {
		return nil, payout.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var out []*payout.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*payout.Payment, error) {
	var (
		p           payout.Payment
		native      bool
		drops       int64
		value       string
		currency    string
		issuer      string
		state       int
		sequence    sql.NullInt64
		artifact    []byte
		submittedAt sql.NullTime
		confirmedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Destination, &native, &drops, &value, &currency,
		&issuer, &p.Memo, &state, &sequence, &artifact, &p.ErrorKind, &p.Fatal,
		&p.CreatedAt, &submittedAt, &confirmedAt)
	if err != nil {
		return nil, err
	}

	if native {
		p.Amount = payout.NewNativeAmount(drops)
	} else {
		p.Amount = payout.NewIssuedAmount(value, currency, issuer)
	}
	p.State = payout.State(state)
	if sequence.Valid {
		seq := uint32(sequence.Int64)
		p.Sequence = &seq
	}
	p.SignedArtifact = artifact
	if submittedAt.Valid {
		t := submittedAt.Time
		p.SubmittedAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	return &p, nil
}

func issuedValue(amount payout.Amount) string {
	if amount.IsNative() {
		return ""
	}
	return amount.Value()
}
