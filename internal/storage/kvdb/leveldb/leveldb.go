// Package leveldb backs kvdb.DB with syndtr/goleveldb.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb"
)

// DB wraps a goleveldb database with synced writes.
type DB struct {
	db *leveldb.DB
}

var _ kvdb.DB = (*DB)(nil)

var syncWrites = &opt.WriteOptions{Sync: true}

// Open opens (creating if needed) a leveldb database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb database at %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

func (l *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.db == nil {
		return nil, kvdb.ErrClosed
	}

	val, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, kvdb.ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

func (l *DB) Write(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.db == nil {
		return kvdb.ErrClosed
	}
	return l.db.Put(key, value, syncWrites)
}

func (l *DB) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.db == nil {
		return kvdb.ErrClosed
	}
	return l.db.Delete(key, syncWrites)
}

func (l *DB) Batch(ctx context.Context, ops []kvdb.BatchOperation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.db == nil {
		return kvdb.ErrClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case kvdb.BatchPut:
			batch.Put(op.Key, op.Value)
		case kvdb.BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}
	return l.db.Write(batch, syncWrites)
}

func (l *DB) Iterator(ctx context.Context, start, end []byte) (kvdb.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.db == nil {
		return nil, kvdb.ErrClosed
	}

	iter := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &iterator{iter: iter}, nil
}

func (l *DB) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

type iterator struct {
	iter  leveldbIterator
	key   []byte
	value []byte
}

// leveldbIterator is the slice of goleveldb's iterator the wrapper uses.
type leveldbIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

func (it *iterator) Next() bool {
	if !it.iter.Next() {
		return false
	}
	it.key = append(it.key[:0], it.iter.Key()...)
	it.value = append(it.value[:0], it.iter.Value()...)
	return true
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }

func (it *iterator) Error() error {
	return it.iter.Error()
}

func (it *iterator) Close() error {
	it.iter.Release()
	return nil
}
