package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/curio/internal/domain"
)

// Tracker applies the status rules for views and quiz attempts and keeps the
// store in step with every mutation.
//
// Mastery is decided by the first quiz attempt only: a correct first answer
// masters the fact, a wrong one locks it at quizzed.
type Tracker struct {
	mu      sync.Mutex
	store   *Store
	now     func() time.Time
	logger  *slog.Logger
	records []domain.UserFactProgress
	index   map[domain.FactID]int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker loads the stored history and returns a tracker over it.
func NewTracker(ctx context.Context, store *Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.records = store.Load(ctx)
	t.reindex()
	return t
}

func (t *Tracker) reindex() {
	t.index = make(map[domain.FactID]int, len(t.records))
	for i, p := range t.records {
		t.index[p.FactID] = i
	}
}

// MarkViewed records one display of a fact. Viewing never changes the status
// of an existing record.
func (t *Tracker) MarkViewed(ctx context.Context, id domain.FactID) (domain.UserFactProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	i, ok := t.index[id]
	if !ok {
		t.records = append(t.records, domain.UserFactProgress{
			FactID:      id,
			Status:      domain.StatusViewed,
			ViewCount:   1,
			FirstViewed: now,
			LastViewed:  now,
		})
		i = len(t.records) - 1
		t.index[id] = i
	} else {
		t.records[i].ViewCount++
		t.records[i].LastViewed = now
	}

	return t.records[i], t.persist(ctx)
}

// MarkQuizAttempt records an answer to the fact's quiz. Only the first attempt
// on a fact decides its status.
func (t *Tracker) MarkQuizAttempt(ctx context.Context, id domain.FactID, isCorrect bool) (domain.UserFactProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	i, ok := t.index[id]
	if !ok {
		t.records = append(t.records, domain.UserFactProgress{
			FactID:      id,
			Status:      domain.StatusViewed,
			ViewCount:   1,
			FirstViewed: now,
		})
		i = len(t.records) - 1
		t.index[id] = i
	}

	p := &t.records[i]
	first := p.QuizAttempts == 0
	p.QuizAttempts++
	if isCorrect {
		p.CorrectAnswers++
	}
	if first {
		if isCorrect {
			p.Status = domain.StatusMastered
		} else {
			p.Status = domain.StatusQuizzed
		}
	}
	p.LastViewed = now

	return *p, t.persist(ctx)
}

// persist must be called with the lock held. The in-memory state stays
// updated when the write fails.
func (t *Tracker) persist(ctx context.Context) error {
	if err := t.store.Save(ctx, t.records); err != nil {
		t.logger.Warn("Failed to save fact progress", "error", err)
		return fmt.Errorf("failed to save fact progress: %w", err)
	}
	return nil
}

// Get returns the record of one fact.
func (t *Tracker) Get(id domain.FactID) (domain.UserFactProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return domain.UserFactProgress{}, false
	}
	return t.records[i], true
}

// All returns a copy of every record in creation order.
func (t *Tracker) All() []domain.UserFactProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.UserFactProgress(nil), t.records...)
}

// History returns every record, most recently seen first.
func (t *Tracker) History() []domain.UserFactProgress {
	h := t.All()
	sort.SliceStable(h, func(i, j int) bool {
		return h[i].LastViewed.After(h[j].LastViewed)
	})
	return h
}

// Mastered returns the mastered part of History.
func (t *Tracker) Mastered() []domain.UserFactProgress {
	return filter(t.History(), func(p domain.UserFactProgress) bool {
		return p.Status == domain.StatusMastered
	})
}

// InProgress returns the part of History that is not mastered yet.
func (t *Tracker) InProgress() []domain.UserFactProgress {
	return filter(t.History(), func(p domain.UserFactProgress) bool {
		return p.Status != domain.StatusMastered
	})
}

func filter(in []domain.UserFactProgress, keep func(domain.UserFactProgress) bool) []domain.UserFactProgress {
	out := make([]domain.UserFactProgress, 0, len(in))
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Statistics summarizes the current records.
func (t *Tracker) Statistics() domain.Statistics {
	return Summarize(t.All())
}

// Summarize derives aggregate statistics from progress records.
func Summarize(records []domain.UserFactProgress) domain.Statistics {
	var stats domain.Statistics
	var attempts, correct int
	stats.TotalViewed = len(records)
	for _, p := range records {
		if p.QuizAttempts > 0 {
			stats.TotalQuizzed++
		}
		if p.Status == domain.StatusMastered {
			stats.TotalMastered++
		}
		attempts += p.QuizAttempts
		correct += p.CorrectAnswers
	}
	if attempts > 0 {
		stats.Accuracy = float64(correct) / float64(attempts) * 100
	}
	return stats
}
