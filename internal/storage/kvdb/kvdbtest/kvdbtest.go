// Package kvdbtest holds the conformance suite every kvdb driver must
// pass. Driver packages call Run from their own tests with a factory
// that opens a fresh database.
package kvdbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/storage/kvdb"
)

// Factory opens a fresh, empty database. Implementations should register
// cleanup with t.Cleanup.
type Factory func(t *testing.T) kvdb.DB

// Run exercises the kvdb.DB contract against the given driver.
func Run(t *testing.T, open Factory) {
	t.Run("ReadWriteDelete", func(t *testing.T) { testReadWriteDelete(t, open) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, open) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, open) })
	t.Run("Batch", func(t *testing.T) { testBatch(t, open) })
	t.Run("IteratorRange", func(t *testing.T) { testIteratorRange(t, open) })
	t.Run("IteratorEmpty", func(t *testing.T) { testIteratorEmpty(t, open) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, open) })
}

func testReadWriteDelete(t *testing.T, open Factory) {
	db := open(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte("k1"), []byte("v1")))

	val, err := db.Read(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)

	require.NoError(t, db.Delete(ctx, []byte("k1")))
	_, err = db.Read(ctx, []byte("k1"))
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
}

func testReadMissing(t *testing.T, open Factory) {
	db := open(t)

	_, err := db.Read(context.Background(), []byte("missing"))
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
}

func testOverwrite(t *testing.T, open Factory) {
	db := open(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte("k"), []byte("old")))
	require.NoError(t, db.Write(ctx, []byte("k"), []byte("new")))

	val, err := db.Read(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), val)
}

func testBatch(t *testing.T, open Factory) {
	db := open(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []byte("doomed"), []byte("x")))

	err := db.Batch(ctx, []kvdb.BatchOperation{
		kvdb.Put([]byte("a"), []byte("1")),
		kvdb.Put([]byte("b"), []byte("2")),
		kvdb.Del([]byte("doomed")),
	})
	require.NoError(t, err)

	val, err := db.Read(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)
	val, err = db.Read(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), val)
	_, err = db.Read(ctx, []byte("doomed"))
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
}

func testIteratorRange(t *testing.T, open Factory) {
	db := open(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("p/%d", i)
		require.NoError(t, db.Write(ctx, []byte(key), []byte{byte(i)}))
	}
	require.NoError(t, db.Write(ctx, []byte("q/0"), []byte("other")))

	// Prefix scan: [p/, p0) covers exactly the p/ keys.
	iter, err := db.Iterator(ctx, []byte("p/"), []byte("p0"))
	require.NoError(t, err)
	defer iter.Close()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"p/0", "p/1", "p/2", "p/3", "p/4"}, keys)
}

func testIteratorEmpty(t *testing.T, open Factory) {
	db := open(t)

	iter, err := db.Iterator(context.Background(), []byte("p/"), []byte("p0"))
	require.NoError(t, err)
	defer iter.Close()

	assert.False(t, iter.Next())
	require.NoError(t, iter.Error())
}

func testClosed(t *testing.T, open Factory) {
	db := open(t)
	ctx := context.Background()

	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "second close is a no-op")

	_, err := db.Read(ctx, []byte("k"))
	require.ErrorIs(t, err, kvdb.ErrClosed)
	require.ErrorIs(t, db.Write(ctx, []byte("k"), []byte("v")), kvdb.ErrClosed)
	require.ErrorIs(t, db.Delete(ctx, []byte("k")), kvdb.ErrClosed)
	require.ErrorIs(t, db.Batch(ctx, nil), kvdb.ErrClosed)
	_, err = db.Iterator(ctx, nil, nil)
	require.ErrorIs(t, err, kvdb.ErrClosed)
}
