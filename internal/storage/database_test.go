package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_GetSet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	t.Run("missing key", func(t *testing.T) {
		blob, ok, err := db.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, blob)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "k", []byte("v1")))
		blob, ok, err := db.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v1"), blob)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "k", []byte("v2")))
		blob, _, err := db.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), blob)
	})
}

type sample struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	t.Run("absent", func(t *testing.T) {
		doc := NewDocument[sample](db, "absent")
		_, ok, err := doc.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("round trip keeps timestamps", func(t *testing.T) {
		doc := NewDocument[[]sample](db, Key(ProgressKey, "p1"))
		at := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
		require.NoError(t, doc.Save(ctx, []sample{{Name: "a", At: at}}))

		got, ok, err := doc.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.True(t, at.Equal(got[0].At))
	})

	t.Run("corrupt", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, "bad", []byte("{not json")))
		doc := NewDocument[sample](db, "bad")
		_, ok, err := doc.Load(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "curio-bookmarks", Key(BookmarksKey, ""))
	assert.Equal(t, "curio-bookmarks:abc", Key(BookmarksKey, "abc"))
}
