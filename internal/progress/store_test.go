package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

func TestStore_Load(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	key := storage.Key(storage.ProgressKey, "p1")
	store := NewStore(db, "p1", nil)

	t.Run("missing", func(t *testing.T) {
		assert.Empty(t, store.Load(ctx))
	})

	t.Run("corrupt", func(t *testing.T) {
		require.NoError(t, db.Set(ctx, key, []byte(`[{"factId": 1,`)))
		got := store.Load(ctx)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("numeric ids and invalid records", func(t *testing.T) {
		blob := `[
			{"factId": 7, "status": "quizzed", "viewCount": 1, "quizAttempts": 1, "correctAnswers": 0,
			 "firstViewed": "2024-01-01T10:00:00Z", "lastViewed": "2024-01-02T10:00:00Z"},
			{"factId": "x", "status": "bogus", "viewCount": 1, "quizAttempts": 0, "correctAnswers": 0,
			 "firstViewed": "2024-01-01T10:00:00Z", "lastViewed": "2024-01-01T10:00:00Z"},
			{"factId": "y", "status": "viewed", "viewCount": 1, "quizAttempts": 1, "correctAnswers": 2,
			 "firstViewed": "2024-01-01T10:00:00Z", "lastViewed": "2024-01-01T10:00:00Z"},
			{"factId": "7", "status": "viewed", "viewCount": 9, "quizAttempts": 0, "correctAnswers": 0,
			 "firstViewed": "2024-01-01T10:00:00Z", "lastViewed": "2024-01-01T10:00:00Z"}
		]`
		require.NoError(t, db.Set(ctx, key, []byte(blob)))

		got := store.Load(ctx)
		require.Len(t, got, 1)
		assert.Equal(t, domain.FactID("7"), got[0].FactID)
		assert.Equal(t, domain.StatusQuizzed, got[0].Status)
		assert.True(t, got[0].LastViewed.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	})
}

func TestStore_SaveLoadFixedPoint(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	key := storage.Key(storage.ProgressKey, "p1")
	store := NewStore(db, "p1", nil)

	at := time.Date(2024, 2, 3, 4, 5, 6, 789, time.FixedZone("X", 3600))
	require.NoError(t, store.Save(ctx, []domain.UserFactProgress{
		{FactID: "a", Status: domain.StatusMastered, ViewCount: 2, QuizAttempts: 1, CorrectAnswers: 1, FirstViewed: at, LastViewed: at},
		{FactID: "b", Status: domain.StatusViewed, ViewCount: 1, FirstViewed: at, LastViewed: at},
	}))
	before, _, err := db.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, store.Load(ctx)))
	after, _, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	require.NoError(t, store.Save(ctx, store.Load(ctx)))
	again, _, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, after, again)
}

func TestStore_SaveNil(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, "", nil)
	require.NoError(t, store.Save(ctx, nil))
	blob, ok, err := db.Get(ctx, storage.ProgressKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(blob))
}
