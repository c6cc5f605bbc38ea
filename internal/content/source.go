// Package content supplies candidate facts: the static seed pool plus facts
// generated on demand for topics that run short.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/knol"
)

// DefaultTopics is the catalogue offered when nothing narrower is configured.
var DefaultTopics = []string{
	"science", "history", "nature", "technology", "space", "animals",
	"culture", "geography", "psychology", "health", "sports", "art",
	"music", "literature", "mathematics", "physics", "chemistry",
	"biology", "archaeology", "astronomy", "philosophy", "economics",
	"politics", "sociology", "anthropology", "linguistics", "medicine",
}

const (
	DefaultMinPool         = 10
	DefaultGenerateCount   = 20
	DefaultPrefillPerTopic = 20
	DefaultBatchSize       = 5
	DefaultBatchPause      = time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultCacheTTL        = 30 * time.Minute

	generatedXP    = 15
	generatedImage = "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?auto=format&fit=crop&w=800&q=80"
)

// ErrNoGenerator is returned by explicit generation calls when the source
// has no generator.
var ErrNoGenerator = errors.New("no content generator configured")

// Generator produces new facts for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string, count int) ([]domain.RawFact, error)
}

// Config tunes when and how much the source generates. Zero values take the
// package defaults.
type Config struct {
	Topics          []string
	MinPool         int
	GenerateCount   int
	PrefillPerTopic int
	BatchSize       int
	BatchPause      time.Duration
	RequestTimeout  time.Duration
	// Publisher is credited as the source of generated facts.
	Publisher string
}

func (c Config) withDefaults() Config {
	if topics := domain.NormalizeTopics(c.Topics); len(topics) > 0 {
		c.Topics = topics
	} else {
		c.Topics = DefaultTopics
	}
	if c.MinPool <= 0 {
		c.MinPool = DefaultMinPool
	}
	if c.GenerateCount <= 0 {
		c.GenerateCount = DefaultGenerateCount
	}
	if c.PrefillPerTopic <= 0 {
		c.PrefillPerTopic = DefaultPrefillPerTopic
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchPause == 0 {
		c.BatchPause = DefaultBatchPause
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Publisher == "" {
		c.Publisher = "AI"
	}
	return c
}

// Candidates is the answer to a topic query. Failed lists the topics whose
// generation failed; the facts are then whatever was already known.
type Candidates struct {
	Facts     []domain.Fact
	Generated int
	Failed    []string
}

// Source combines the seed pool with the generation cache.
type Source struct {
	seed   []domain.Fact
	byID   map[domain.FactID]int
	cache  *Cache
	gen    Generator
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithClock overrides the time source used to date generated facts.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// NewSource builds a source over seed. gen may be nil, in which case the
// source only ever serves the seed pool and what is already cached.
func NewSource(seed []domain.Fact, cache *Cache, gen Generator, cfg Config, opts ...Option) *Source {
	s := &Source{
		byID:   make(map[domain.FactID]int, len(seed)),
		cache:  cache,
		gen:    gen,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewCache(DefaultCacheTTL, s.now)
	}
	for _, f := range seed {
		if _, dup := s.byID[f.ID]; dup {
			continue
		}
		s.byID[f.ID] = len(s.seed)
		s.seed = append(s.seed, f)
	}
	return s
}

// GetAllFacts returns the seed pool followed by every cached generated fact.
func (s *Source) GetAllFacts() []domain.Fact {
	all := append([]domain.Fact(nil), s.seed...)
	for _, f := range s.cache.All() {
		if _, ok := s.byID[f.ID]; !ok {
			all = append(all, f)
		}
	}
	return all
}

// Lookup finds a known fact by id.
func (s *Source) Lookup(id domain.FactID) (domain.Fact, bool) {
	if i, ok := s.byID[id]; ok {
		return s.seed[i], true
	}
	for _, f := range s.cache.All() {
		if f.ID == id {
			return f, true
		}
	}
	return domain.Fact{}, false
}

// GetFactsByTopics returns the known facts in the given topics, or in every
// topic when none are given, leaving out excluded ids. When fewer than the
// minimum pool match, topics that are short and not freshly generated are
// filled from the generator before returning. Generation failures are logged
// and reported in Candidates.Failed, never returned.
func (s *Source) GetFactsByTopics(ctx context.Context, topics []string, exclude []domain.FactID) Candidates {
	topics = domain.NormalizeTopics(topics)
	excluded := make(map[domain.FactID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	match := s.matching(topics, excluded)
	if len(match) >= s.cfg.MinPool || s.gen == nil {
		return Candidates{Facts: match}
	}

	targets := s.underSupplied(topics, match)
	if len(targets) == 0 {
		return Candidates{Facts: match}
	}

	per := (s.cfg.GenerateCount + len(targets) - 1) / len(targets)
	s.logger.Debug("Pool below minimum, generating", "matched", len(match), "topics", targets, "per_topic", per)
	generated, failed := s.fill(ctx, targets, func(string) int { return per })
	if generated > 0 {
		match = s.matching(topics, excluded)
	}
	return Candidates{Facts: match, Generated: generated, Failed: failed}
}

func (s *Source) matching(topics []string, excluded map[domain.FactID]bool) []domain.Fact {
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t] = true
	}
	all := s.GetAllFacts()
	match := make([]domain.Fact, 0, len(all))
	for _, f := range all {
		if excluded[f.ID] {
			continue
		}
		if len(wanted) > 0 && !wanted[f.Topic] {
			continue
		}
		match = append(match, f)
	}
	return match
}

// underSupplied picks the topics to generate for. Requested topics below
// their share of the minimum pool qualify; without requested topics the
// least supplied catalogue topics are taken, one batch at most. Topics
// generated within the TTL are skipped.
func (s *Source) underSupplied(topics []string, match []domain.Fact) []string {
	open := len(topics) == 0
	if open {
		topics = s.cfg.Topics
	}
	counts := make(map[string]int, len(topics))
	for _, f := range match {
		counts[f.Topic]++
	}
	share := (s.cfg.MinPool + len(topics) - 1) / len(topics)

	var targets []string
	for _, t := range topics {
		if counts[t] < share && !s.cache.Fresh(t) {
			targets = append(targets, t)
		}
	}
	if open {
		sort.SliceStable(targets, func(i, j int) bool {
			return counts[targets[i]] < counts[targets[j]]
		})
		if len(targets) > s.cfg.BatchSize {
			targets = targets[:s.cfg.BatchSize]
		}
	}
	return targets
}

// fill generates for topics in batches, pausing between batches. want gives
// the number of facts to ask for per topic.
func (s *Source) fill(ctx context.Context, topics []string, want func(string) int) (int, []string) {
	var (
		generated int
		failed    []string
	)
	for start := 0; start < len(topics); start += s.cfg.BatchSize {
		if start > 0 {
			select {
			case <-time.After(s.cfg.BatchPause):
			case <-ctx.Done():
				return generated, append(failed, topics[start:]...)
			}
		}

		batch := topics[start:min(start+s.cfg.BatchSize, len(topics))]
		added := make([]int, len(batch))
		errs := make([]error, len(batch))
		var g errgroup.Group
		for i, topic := range batch {
			g.Go(func() error {
				added[i], errs[i] = s.generate(ctx, topic, want(topic))
				return nil
			})
		}
		_ = g.Wait()

		for i, topic := range batch {
			if errs[i] != nil {
				s.logger.Warn("Failed to generate facts", "topic", topic, "error", errs[i])
				failed = append(failed, topic)
				continue
			}
			generated += added[i]
			s.logger.Info("Generated facts", "topic", topic, "added", added[i], "cached", s.cache.Count(topic))
		}
	}
	return generated, failed
}

// generate runs one generation for topic. Concurrent calls for the same topic
// share a single request. The request is detached from ctx so an abandoned
// caller still gets its results cached; it is bounded by the request timeout.
func (s *Source) generate(ctx context.Context, topic string, count int) (int, error) {
	ch := s.group.DoChan(topic, func() (any, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()

		raws, err := s.gen.Generate(gctx, topic, count)
		if err != nil {
			return 0, err
		}
		facts := s.materialize(topic, raws)
		if len(facts) == 0 {
			return 0, fmt.Errorf("generator returned no usable facts for %s", topic)
		}
		return s.cache.Append(topic, facts), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// materialize turns raw generator output into facts filed under topic.
func (s *Source) materialize(topic string, raws []domain.RawFact) []domain.Fact {
	year := s.now().Year()
	facts := make([]domain.Fact, 0, len(raws))
	for _, raw := range raws {
		title := strings.TrimSpace(raw.Title)
		blurb := strings.TrimSpace(raw.Blurb)
		f := domain.Fact{
			ID:     knol.FactID(topic, title, blurb),
			Title:  title,
			Blurb:  blurb,
			Body:   blurb,
			Topic:  topic,
			Image:  generatedImage,
			Sources: []domain.Source{{
				Title:       "AI Generated Fact",
				Publication: s.cfg.Publisher,
				Year:        year,
				Type:        "article",
			}},
			XPValue:     generatedXP,
			Difficulty:  domain.Medium,
			Tags:        []string{topic},
			Quiz:        raw.Quiz,
			IsGenerated: true,
		}
		if f.Quiz != nil {
			if err := domain.Validate(*f.Quiz); err != nil {
				s.logger.Debug("Dropping invalid generated quiz", "topic", topic, "title", title, "error", err)
				f.Quiz = nil
			}
		}
		if err := domain.Validate(f); err != nil {
			s.logger.Debug("Dropping invalid generated fact", "topic", topic, "error", err)
			continue
		}
		facts = append(facts, f)
	}
	return facts
}

// GenerateMore asks the generator for count more facts on topic regardless
// of freshness. It returns how many new facts were cached.
func (s *Source) GenerateMore(ctx context.Context, topic string, count int) (int, error) {
	if s.gen == nil {
		return 0, ErrNoGenerator
	}
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return 0, errors.New("topic is required")
	}
	if count <= 0 {
		count = s.cfg.GenerateCount
	}
	added, err := s.generate(ctx, topic, count)
	if err != nil {
		return 0, fmt.Errorf("failed to generate facts for %s: %w", topic, err)
	}
	return added, nil
}

// Prewarm tops up the cache of every topic, or of the catalogue when none
// are given, to the prefill target.
func (s *Source) Prewarm(ctx context.Context, topics []string) (int, error) {
	if s.gen == nil {
		return 0, ErrNoGenerator
	}
	topics = domain.NormalizeTopics(topics)
	if len(topics) == 0 {
		topics = s.cfg.Topics
	}

	var targets []string
	for _, t := range topics {
		if s.cache.Count(t) < s.cfg.PrefillPerTopic {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	generated, failed := s.fill(ctx, targets, func(t string) int {
		return max(s.cfg.PrefillPerTopic-s.cache.Count(t), 1)
	})
	s.logger.Info("Prewarmed fact cache", "topics", len(targets), "generated", generated, "failed", len(failed))
	if len(failed) > 0 {
		return generated, fmt.Errorf("failed to prewarm %d topics: %s", len(failed), strings.Join(failed, ", "))
	}
	return generated, nil
}

// AvailableTopics returns the catalogue followed by any other topic present
// in the seed pool or the cache.
func (s *Source) AvailableTopics() []string {
	topics := append([]string(nil), s.cfg.Topics...)
	known := make(map[string]bool, len(topics))
	for _, t := range topics {
		known[t] = true
	}
	var extra []string
	for _, f := range s.GetAllFacts() {
		if !known[f.Topic] {
			known[f.Topic] = true
			extra = append(extra, f.Topic)
		}
	}
	sort.Strings(extra)
	return append(topics, extra...)
}

// TopicCounts returns the number of known facts per topic.
func (s *Source) TopicCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range s.GetAllFacts() {
		counts[f.Topic]++
	}
	return counts
}

// ClearCache forgets every generated fact.
func (s *Source) ClearCache() {
	s.cache.Clear()
}
