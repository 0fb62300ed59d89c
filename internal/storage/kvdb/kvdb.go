// Package kvdb is a thin abstraction over embedded key-value stores. The
// kv payment store is written against it, with pebble and goleveldb
// drivers in the subpackages.
package kvdb

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when operating on a closed database.
	ErrClosed = errors.New("kvdb is closed")

	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

// DB is the operation set every driver must support. Batch is atomic:
// either every operation applies or none does.
type DB interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error

	Batch(ctx context.Context, ops []BatchOperation) error

	// Iterator walks keys in [start, end) in ascending order. A nil bound
	// is unbounded on that side.
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	Close() error
}

// Iterator traverses entries in key order. Key and Value are only valid
// until the following Next call.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation is a single write or delete inside an atomic batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

// BatchOpType selects what a BatchOperation does.
type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)

// Put builds a write operation.
func Put(key, value []byte) BatchOperation {
	return BatchOperation{Type: BatchPut, Key: key, Value: value}
}

// Del builds a delete operation.
func Del(key []byte) BatchOperation {
	return BatchOperation{Type: BatchDelete, Key: key}
}
