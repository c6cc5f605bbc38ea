package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestTracker(t *testing.T) (*Tracker, *storage.DB, *fixedClock) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fixedClock{t: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	tr := NewTracker(context.Background(), NewStore(db, "p1", nil), WithClock(clock.Now))
	return tr, db, clock
}

func TestTracker_MarkViewed(t *testing.T) {
	ctx := context.Background()
	tr, _, clock := newTestTracker(t)

	p, err := tr.MarkViewed(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusViewed, p.Status)
	assert.Equal(t, 1, p.ViewCount)
	assert.Equal(t, clock.t, p.FirstViewed)
	assert.Equal(t, clock.t, p.LastViewed)

	first := clock.t
	clock.t = clock.t.Add(time.Hour)
	p, err = tr.MarkViewed(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ViewCount)
	assert.Equal(t, first, p.FirstViewed)
	assert.Equal(t, clock.t, p.LastViewed)
}

func TestTracker_ViewDoesNotRegressStatus(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	_, err := tr.MarkQuizAttempt(ctx, "f1", true)
	require.NoError(t, err)
	p, err := tr.MarkViewed(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMastered, p.Status)
	assert.Equal(t, 2, p.ViewCount)
}

func TestTracker_MarkQuizAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("correct first attempt masters", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		p, err := tr.MarkQuizAttempt(ctx, "f1", true)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusMastered, p.Status)
		assert.Equal(t, 1, p.QuizAttempts)
		assert.Equal(t, 1, p.CorrectAnswers)
	})

	t.Run("wrong then right stays quizzed", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		_, err := tr.MarkQuizAttempt(ctx, "f1", false)
		require.NoError(t, err)
		p, err := tr.MarkQuizAttempt(ctx, "f1", true)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusQuizzed, p.Status)
		assert.Equal(t, 2, p.QuizAttempts)
		assert.Equal(t, 1, p.CorrectAnswers)
	})

	t.Run("viewed fact answered correctly masters", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		_, err := tr.MarkViewed(ctx, "f1")
		require.NoError(t, err)
		p, err := tr.MarkQuizAttempt(ctx, "f1", true)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusMastered, p.Status)
	})

	t.Run("mastered fact answered wrong stays mastered", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		_, err := tr.MarkQuizAttempt(ctx, "f1", true)
		require.NoError(t, err)
		p, err := tr.MarkQuizAttempt(ctx, "f1", false)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusMastered, p.Status)
		assert.Equal(t, 2, p.QuizAttempts)
		assert.LessOrEqual(t, p.CorrectAnswers, p.QuizAttempts)
	})

	t.Run("attempt updates last viewed", func(t *testing.T) {
		tr, _, clock := newTestTracker(t)
		_, err := tr.MarkViewed(ctx, "f1")
		require.NoError(t, err)
		clock.t = clock.t.Add(48 * time.Hour)
		p, err := tr.MarkQuizAttempt(ctx, "f1", false)
		require.NoError(t, err)
		assert.Equal(t, clock.t, p.LastViewed)
	})
}

func TestTracker_Statistics(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	assert.Equal(t, domain.Statistics{}, tr.Statistics())

	_, _ = tr.MarkViewed(ctx, "a")
	_, _ = tr.MarkQuizAttempt(ctx, "b", true)
	_, _ = tr.MarkQuizAttempt(ctx, "c", false)
	_, _ = tr.MarkQuizAttempt(ctx, "c", true)

	stats := tr.Statistics()
	assert.Equal(t, 3, stats.TotalViewed)
	assert.Equal(t, 2, stats.TotalQuizzed)
	assert.Equal(t, 1, stats.TotalMastered)
	assert.InDelta(t, 66.67, stats.Accuracy, 0.01)
}

func TestTracker_History(t *testing.T) {
	ctx := context.Background()
	tr, _, clock := newTestTracker(t)

	_, _ = tr.MarkQuizAttempt(ctx, "old", true)
	clock.t = clock.t.Add(time.Hour)
	_, _ = tr.MarkViewed(ctx, "new")

	h := tr.History()
	require.Len(t, h, 2)
	assert.Equal(t, domain.FactID("new"), h[0].FactID)

	require.Len(t, tr.Mastered(), 1)
	assert.Equal(t, domain.FactID("old"), tr.Mastered()[0].FactID)
	require.Len(t, tr.InProgress(), 1)
	assert.Equal(t, domain.FactID("new"), tr.InProgress()[0].FactID)
}

func TestTracker_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	tr, db, clock := newTestTracker(t)

	_, err := tr.MarkQuizAttempt(ctx, "f1", false)
	require.NoError(t, err)

	reloaded := NewTracker(ctx, NewStore(db, "p1", nil), WithClock(clock.Now))
	p, ok := reloaded.Get("f1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusQuizzed, p.Status)
	assert.Equal(t, 1, p.QuizAttempts)

	// A second tracker must not see the attempt as a first one.
	p, err = reloaded.MarkQuizAttempt(ctx, "f1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuizzed, p.Status)
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (failingKV) Set(context.Context, string, []byte) error        { return errors.New("disk full") }

func TestTracker_SaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(ctx, NewStore(failingKV{}, "p1", nil))

	_, err := tr.MarkQuizAttempt(ctx, "f1", false)
	require.Error(t, err)

	p, ok := tr.Get("f1")
	require.True(t, ok)
	assert.Equal(t, 1, p.QuizAttempts)
}
