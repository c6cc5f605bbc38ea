// Package app is the surface the user interface talks to. It composes the
// content source, the selector, progress, the ledger and bookmarks.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/curio/internal/bookmarks"
	"github.com/conorfennell/curio/internal/content"
	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/gamification"
	"github.com/conorfennell/curio/internal/progress"
	"github.com/conorfennell/curio/internal/selector"
)

var (
	ErrFactNotFound  = errors.New("fact not found")
	ErrNoQuiz        = errors.New("fact has no quiz")
	ErrInvalidOption = errors.New("quiz option out of range")
	ErrClosed        = errors.New("service is closed")
)

// NoticeGenerationFailed is shown when new facts could not be fetched.
const NoticeGenerationFailed = "Could not fetch new facts right now, showing what's available."

// Content is what the service needs from the content source.
type Content interface {
	GetFactsByTopics(ctx context.Context, topics []string, exclude []domain.FactID) content.Candidates
	Lookup(id domain.FactID) (domain.Fact, bool)
	AvailableTopics() []string
	TopicCounts() map[string]int
	Prewarm(ctx context.Context, topics []string) (int, error)
}

// Deck is one set of facts to show. An Empty deck is a valid state the UI
// renders on its own.
type Deck struct {
	Seq         uint64        `json:"seq"`
	Facts       []domain.Fact `json:"facts"`
	Notice      string        `json:"notice,omitempty"`
	Empty       bool          `json:"empty"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// QuizOutcome is the result of answering a fact's quiz.
type QuizOutcome struct {
	Progress      domain.UserFactProgress `json:"progress"`
	Result        gamification.QuizResult `json:"result"`
	CorrectAnswer int                     `json:"correctAnswer"`
	Explanation   string                  `json:"explanation,omitempty"`
}

// HistoryEntry pairs a progress record with its fact when the fact is
// still known.
type HistoryEntry struct {
	Progress domain.UserFactProgress `json:"progress"`
	Fact     *domain.Fact            `json:"fact,omitempty"`
}

// TopicInfo describes one selectable topic.
type TopicInfo struct {
	Name      string `json:"name"`
	Facts     int    `json:"facts"`
	Preferred bool   `json:"preferred"`
}

// Deps are the collaborators of a Service. Closer, when set, is closed by
// Close once every pending write has finished.
type Deps struct {
	Content   Content
	Tracker   *progress.Tracker
	Selector  *selector.Selector
	Ledger    *gamification.Ledger
	Bookmarks *bookmarks.Set
	Closer    io.Closer
}

// Service implements the UI-facing operations.
type Service struct {
	Deps
	target int
	now    func() time.Time
	logger *slog.Logger

	// gate is held shared by every operation that writes and exclusively by
	// Close.
	gate   sync.RWMutex
	closed bool

	mu         sync.Mutex
	seq        uint64
	current    Deck
	refreshing int
}

// Option configures a Service.
type Option func(*Service)

// WithTargetCount sets the deck size.
func WithTargetCount(n int) Option {
	return func(s *Service) { s.target = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		Deps:   deps,
		target: selector.DefaultTargetCount,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.target <= 0 {
		s.target = selector.DefaultTargetCount
	}
	return s
}

func (s *Service) enter() error {
	s.gate.RLock()
	if s.closed {
		s.gate.RUnlock()
		return ErrClosed
	}
	return nil
}

func (s *Service) leave() { s.gate.RUnlock() }

// GetFactsToShow picks a deck for the current profile. The candidates come
// from the preferred topics; a short result is widened once to every topic.
func (s *Service) GetFactsToShow(ctx context.Context) Deck {
	preferred := s.Ledger.PreferredTopics()
	records := s.Tracker.All()
	exclude := s.Selector.Excluded(records)

	cands := s.Content.GetFactsByTopics(ctx, preferred, exclude)
	failed := len(cands.Failed) > 0
	facts := s.Selector.SelectDailyFacts(cands.Facts, records, preferred, s.target)

	if len(facts) < s.target && len(preferred) > 0 {
		s.logger.Debug("Preferred topics ran short, widening", "selected", len(facts), "preferred", preferred)
		wide := s.Content.GetFactsByTopics(ctx, nil, exclude)
		failed = failed || len(wide.Failed) > 0
		facts = s.Selector.SelectDailyFacts(wide.Facts, records, preferred, s.target)
	}

	deck := Deck{
		Facts:       facts,
		Empty:       len(facts) == 0,
		GeneratedAt: s.now(),
	}
	if failed {
		deck.Notice = NoticeGenerationFailed
	}
	return deck
}

// GetFactsToShowFrom runs the selection over a pool the caller already has.
func (s *Service) GetFactsToShowFrom(pool []domain.Fact, records []domain.UserFactProgress, preferred []string) []domain.Fact {
	return s.Selector.SelectDailyFacts(pool, records, preferred, s.target)
}

// Refresh computes a new deck and installs it as the current one. When
// refreshes overlap the most recently started one wins, whatever the order
// they finish in. The returned deck is the one installed afterwards.
func (s *Service) Refresh(ctx context.Context) Deck {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.refreshing++
	s.mu.Unlock()

	deck := s.GetFactsToShow(ctx)
	deck.Seq = seq

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing--
	if seq > s.current.Seq {
		s.current = deck
	} else {
		s.logger.Debug("Discarding superseded deck", "seq", seq, "current", s.current.Seq)
	}
	return s.current
}

// CurrentDeck returns the installed deck. The boolean is false before the
// first refresh completes.
func (s *Service) CurrentDeck() (Deck, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current.Seq > 0
}

// Refreshing reports whether a refresh is in flight.
func (s *Service) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing > 0
}

// lookup finds a fact among known and bookmarked facts.
func (s *Service) lookup(id domain.FactID) (domain.Fact, error) {
	if f, ok := s.Content.Lookup(id); ok {
		return f, nil
	}
	if f, ok := s.Bookmarks.Get(id); ok {
		return f, nil
	}
	return domain.Fact{}, fmt.Errorf("%w: %s", ErrFactNotFound, id)
}

// Fact returns a known fact.
func (s *Service) Fact(id domain.FactID) (domain.Fact, error) {
	return s.lookup(id)
}

// MarkViewed records that the fact was shown.
func (s *Service) MarkViewed(ctx context.Context, id domain.FactID) (domain.UserFactProgress, error) {
	if err := s.enter(); err != nil {
		return domain.UserFactProgress{}, err
	}
	defer s.leave()
	if _, err := s.lookup(id); err != nil {
		return domain.UserFactProgress{}, err
	}
	return s.Tracker.MarkViewed(ctx, id)
}

// MarkQuizAttempt records an answer without awarding XP.
func (s *Service) MarkQuizAttempt(ctx context.Context, id domain.FactID, isCorrect bool) (domain.UserFactProgress, error) {
	if err := s.enter(); err != nil {
		return domain.UserFactProgress{}, err
	}
	defer s.leave()
	return s.Tracker.MarkQuizAttempt(ctx, id, isCorrect)
}

// CompleteQuiz awards XP for fact.
func (s *Service) CompleteQuiz(ctx context.Context, fact domain.Fact, isCorrect bool) (gamification.QuizResult, error) {
	if err := s.enter(); err != nil {
		return gamification.QuizResult{}, err
	}
	defer s.leave()
	return s.Ledger.CompleteQuiz(ctx, fact, isCorrect)
}

// AnswerQuiz checks option against the fact's quiz, records the attempt and
// awards XP. Both writes are attempted even when one fails.
func (s *Service) AnswerQuiz(ctx context.Context, id domain.FactID, option int) (QuizOutcome, error) {
	if err := s.enter(); err != nil {
		return QuizOutcome{}, err
	}
	defer s.leave()

	fact, err := s.lookup(id)
	if err != nil {
		return QuizOutcome{}, err
	}
	if fact.Quiz == nil {
		return QuizOutcome{}, fmt.Errorf("%w: %s", ErrNoQuiz, id)
	}
	if option < 0 || option >= len(fact.Quiz.Options) {
		return QuizOutcome{}, fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}

	correct := fact.Quiz.IsCorrect(option)
	p, perr := s.Tracker.MarkQuizAttempt(ctx, id, correct)
	r, lerr := s.Ledger.CompleteQuiz(ctx, fact, correct)
	return QuizOutcome{
		Progress:      p,
		Result:        r,
		CorrectAnswer: fact.Quiz.CorrectAnswer,
		Explanation:   fact.Quiz.Explanation,
	}, errors.Join(perr, lerr)
}

// Statistics summarizes progress.
func (s *Service) Statistics() domain.Statistics {
	return s.Tracker.Statistics()
}

// XPProgress returns the level progress.
func (s *Service) XPProgress() gamification.XPProgress {
	return s.Ledger.XPProgress()
}

// Profile returns the user profile.
func (s *Service) Profile() domain.UserProfile {
	return s.Ledger.Profile()
}

// SetPreferredTopics replaces the preferred topics.
func (s *Service) SetPreferredTopics(ctx context.Context, topics []string) ([]string, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	return s.Ledger.SetPreferredTopics(ctx, topics)
}

// UpdateIdentity changes the display name and avatar.
func (s *Service) UpdateIdentity(ctx context.Context, displayName, avatar string) (domain.UserProfile, error) {
	if err := s.enter(); err != nil {
		return domain.UserProfile{}, err
	}
	defer s.leave()
	return s.Ledger.UpdateIdentity(ctx, displayName, avatar)
}

// Topics lists the selectable topics with their fact counts.
func (s *Service) Topics() []TopicInfo {
	counts := s.Content.TopicCounts()
	preferred := make(map[string]bool)
	for _, t := range s.Ledger.PreferredTopics() {
		preferred[t] = true
	}
	available := s.Content.AvailableTopics()
	topics := make([]TopicInfo, 0, len(available))
	for _, t := range available {
		topics = append(topics, TopicInfo{Name: t, Facts: counts[t], Preferred: preferred[t]})
	}
	return topics
}

// History returns progress most recently seen first, with the facts.
func (s *Service) History() []HistoryEntry {
	records := s.Tracker.History()
	entries := make([]HistoryEntry, 0, len(records))
	for _, p := range records {
		e := HistoryEntry{Progress: p}
		if f, err := s.lookup(p.FactID); err == nil {
			e.Fact = &f
		}
		entries = append(entries, e)
	}
	return entries
}

// AddBookmark saves a snapshot of the fact.
func (s *Service) AddBookmark(ctx context.Context, id domain.FactID) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	fact, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.Bookmarks.Add(ctx, fact)
}

// RemoveBookmark drops the bookmark of id.
func (s *Service) RemoveBookmark(ctx context.Context, id domain.FactID) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	return s.Bookmarks.Remove(ctx, id)
}

// IsBookmarked reports whether id is bookmarked.
func (s *Service) IsBookmarked(id domain.FactID) bool {
	return s.Bookmarks.IsBookmarked(id)
}

// ListBookmarks lists the bookmarked facts.
func (s *Service) ListBookmarks() []domain.Fact {
	return s.Bookmarks.List()
}

// Prewarm fills the generation cache for the preferred topics, or for the
// whole catalogue when none are set.
func (s *Service) Prewarm(ctx context.Context) error {
	_, err := s.Content.Prewarm(ctx, s.Ledger.PreferredTopics())
	return err
}

// Close waits for pending writes, then closes the storage. Later writes fail
// with ErrClosed.
func (s *Service) Close() error {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.Closer != nil {
		return s.Closer.Close()
	}
	return nil
}
