package gamification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProgress(t *testing.T) {
	tests := []struct {
		total   int
		level   int
		inLevel int
		percent float64
	}{
		{0, 1, 0, 0},
		{45, 1, 45, 45},
		{100, 2, 0, 0},
		{250, 3, 50, 50},
	}
	for _, tc := range tests {
		p := Progress(tc.total)
		assert.Equal(t, tc.level, p.CurrentLevel, "total %d", tc.total)
		assert.Equal(t, tc.inLevel, p.XPInCurrentLevel, "total %d", tc.total)
		assert.Equal(t, XPPerLevel, p.XPForNextLevel)
		assert.InDelta(t, tc.percent, p.ProgressPercentage, 0.001)
	}
}

func TestLedger_DefaultProfile(t *testing.T) {
	l := NewLedger(context.Background(), newTestDB(t), "", nil)
	p := l.Profile()
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "CurioExplorer", p.DisplayName)
	assert.Equal(t, "🧠", p.Avatar)
	assert.Zero(t, p.TotalXP)
	assert.Empty(t, p.PreferredTopics)
}

func TestLedger_CompleteQuiz(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, newTestDB(t), "", nil)
	fact := domain.Fact{ID: "f1", XPValue: 25}

	res, err := l.CompleteQuiz(ctx, fact, true)
	require.NoError(t, err)
	assert.Equal(t, QuizResult{XPGained: 25, IsCorrect: true}, res)
	assert.True(t, l.IsFactCompleted("f1"))

	res, err = l.CompleteQuiz(ctx, fact, true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.XPGained)
	assert.True(t, res.AlreadyCompleted)
	assert.Equal(t, 25, l.Profile().TotalXP)

	res, err = l.CompleteQuiz(ctx, domain.Fact{ID: "f2", XPValue: 15}, false)
	require.NoError(t, err)
	assert.Equal(t, 7, res.XPGained)
	assert.False(t, res.IsCorrect)

	assert.Equal(t, 32, l.XPProgress().TotalXP)
	assert.Equal(t, []domain.FactID{"f1", "f2"}, l.Profile().CompletedFacts)
}

func TestLedger_Persists(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	l := NewLedger(ctx, db, "p1", nil)

	_, err := l.CompleteQuiz(ctx, domain.Fact{ID: "f1", XPValue: 110}, true)
	require.NoError(t, err)
	_, err = l.SetPreferredTopics(ctx, []string{"Space", " art", "space", ""})
	require.NoError(t, err)
	_, err = l.UpdateIdentity(ctx, "Ada", "")
	require.NoError(t, err)

	reloaded := NewLedger(ctx, db, "p1", nil)
	p := reloaded.Profile()
	assert.Equal(t, l.Profile().ID, p.ID)
	assert.Equal(t, 110, p.TotalXP)
	assert.Equal(t, []string{"space", "art"}, p.PreferredTopics)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "🧠", p.Avatar)
	assert.True(t, reloaded.IsFactCompleted("f1"))
	assert.Equal(t, 2, reloaded.XPProgress().CurrentLevel)

	other := NewLedger(ctx, db, "p2", nil)
	assert.Zero(t, other.Profile().TotalXP)
}

func TestLedger_CorruptProfile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Set(ctx, storage.ProfileKey, []byte(`{"id":`)))

	l := NewLedger(ctx, db, "", nil)
	assert.Equal(t, "CurioExplorer", l.Profile().DisplayName)

	require.NoError(t, db.Set(ctx, storage.ProfileKey, []byte(`{"id":"x","totalXP":-5}`)))
	l = NewLedger(ctx, db, "", nil)
	assert.Zero(t, l.Profile().TotalXP)
	assert.NotEqual(t, "x", l.Profile().ID)
}

func TestLedger_DedupesStoredCompletions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Set(ctx, storage.ProfileKey,
		[]byte(`{"id":"x","totalXP":30,"completedFacts":["a","a",7],"preferredTopics":["Art"]}`)))

	p := NewLedger(ctx, db, "", nil).Profile()
	assert.Equal(t, []domain.FactID{"a", "7"}, p.CompletedFacts)
	assert.Equal(t, []string{"art"}, p.PreferredTopics)
}

type failingKV struct{ storage.KV }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestLedger_SaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, failingKV{newTestDB(t)}, "", nil)

	_, err := l.CompleteQuiz(ctx, domain.Fact{ID: "f1", XPValue: 10}, true)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 10, l.Profile().TotalXP)

	res, err := l.CompleteQuiz(ctx, domain.Fact{ID: "f1", XPValue: 10}, true)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)
}
