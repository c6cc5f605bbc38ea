// Package selector picks the small daily set of facts shown to the user.
package selector

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/curio/internal/domain"
)

const (
	// DefaultTargetCount is the size of a daily set.
	DefaultTargetCount = 3
	// DefaultCooldown keeps a fact with progress out of selection after it was last seen.
	DefaultCooldown = 30 * 24 * time.Hour

	// preferredCap bounds how many picks the preferred-topic pass may make.
	preferredCap = 2
)

// Selector balances topic preference against topic variety. It is safe for
// concurrent use.
type Selector struct {
	mu       sync.Mutex
	rng      *rand.Rand
	now      func() time.Time
	cooldown time.Duration
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used for every pick and shuffle.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rng = r }
}

// WithSeed seeds a deterministic PCG random source.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithClock overrides the time source used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Selector) { s.cooldown = d }
}

// New returns a Selector seeded from the runtime random source.
func New(opts ...Option) *Selector {
	s := &Selector{
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cooldown returns the window during which a seen fact is not selected again.
func (s *Selector) Cooldown() time.Duration {
	return s.cooldown
}

// Eligible filters pool down to the facts that may be selected now: never
// mastered facts, and no fact seen within the cooldown. Facts without
// progress are always eligible. Repeated ids keep their first occurrence.
func (s *Selector) Eligible(pool []domain.Fact, progress []domain.UserFactProgress) []domain.Fact {
	byID := indexProgress(progress)
	now := s.now()

	out := make([]domain.Fact, 0, len(pool))
	seen := make(map[domain.FactID]bool, len(pool))
	for _, f := range pool {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		if p, ok := byID[f.ID]; ok && !s.eligible(p, now) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Excluded returns the ids that Eligible would currently drop.
func (s *Selector) Excluded(progress []domain.UserFactProgress) []domain.FactID {
	now := s.now()
	var ids []domain.FactID
	for _, p := range progress {
		if !s.eligible(p, now) {
			ids = append(ids, p.FactID)
		}
	}
	return ids
}

func (s *Selector) eligible(p domain.UserFactProgress, now time.Time) bool {
	if p.Status == domain.StatusMastered {
		return false
	}
	return now.Sub(p.LastViewed) >= s.cooldown
}

func indexProgress(progress []domain.UserFactProgress) map[domain.FactID]domain.UserFactProgress {
	m := make(map[domain.FactID]domain.UserFactProgress, len(progress))
	for _, p := range progress {
		m[p.FactID] = p
	}
	return m
}

// SelectDailyFacts picks up to targetCount eligible facts from pool.
//
// Preferred topics contribute one random fact each, at most two in total.
// Remaining slots go round-robin over the topics that still have facts, in
// shuffled order, one random fact per topic per round. The result is shuffled
// again before it is returned. A result shorter than targetCount means the
// eligible pool ran out.
func (s *Selector) SelectDailyFacts(pool []domain.Fact, progress []domain.UserFactProgress, preferredTopics []string, targetCount int) []domain.Fact {
	if targetCount <= 0 {
		targetCount = DefaultTargetCount
	}

	eligible := s.Eligible(pool, progress)

	s.mu.Lock()
	defer s.mu.Unlock()

	b := bucketize(eligible)
	selected := make([]domain.Fact, 0, targetCount)

	// Preferred-topic pass.
	limit := min(preferredCap, targetCount)
	for _, topic := range domain.NormalizeTopics(preferredTopics) {
		if len(selected) >= limit {
			break
		}
		if f, ok := b.take(topic, s.rng); ok {
			selected = append(selected, f)
		}
	}

	// Variety pass.
	topics := b.nonEmpty()
	Shuffle(s.rng, topics)
	for len(selected) < targetCount && len(topics) > 0 {
		for i := 0; i < len(topics) && len(selected) < targetCount; {
			f, ok := b.take(topics[i], s.rng)
			if ok {
				selected = append(selected, f)
			}
			if b.empty(topics[i]) {
				topics = append(topics[:i], topics[i+1:]...)
				continue
			}
			i++
		}
	}

	// Fallback pass over whatever is left anywhere.
	if len(selected) < targetCount {
		rest := b.remaining()
		Shuffle(s.rng, rest)
		need := min(targetCount-len(selected), len(rest))
		selected = append(selected, rest[:need]...)
	}

	Shuffle(s.rng, selected)
	return selected
}

// Shuffle permutes items in place with the Fisher-Yates algorithm.
func Shuffle[T any](r *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
