// Package bookmarks keeps the facts the user saved for later.
package bookmarks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

// Set is the persisted bookmark set. Bookmarks are full fact snapshots in the
// order they were added, independent of progress.
type Set struct {
	mu     sync.Mutex
	doc    *storage.Document[[]domain.Fact]
	logger *slog.Logger
	facts  []domain.Fact
}

// New loads the bookmarks stored for profileID. Corrupt data is logged and
// yields an empty set.
func New(ctx context.Context, kv storage.KV, profileID string, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Set{
		doc:    storage.NewDocument[[]domain.Fact](kv, storage.Key(storage.BookmarksKey, profileID)),
		logger: logger,
	}

	stored, _, err := s.doc.Load(ctx)
	if err != nil {
		logger.Warn("Discarding stored bookmarks", "key", s.doc.Key(), "error", err)
	}
	for _, f := range stored {
		if f.ID == "" || s.index(f.ID) >= 0 {
			continue
		}
		s.facts = append(s.facts, f)
	}
	return s
}

func (s *Set) index(id domain.FactID) int {
	return slices.IndexFunc(s.facts, func(f domain.Fact) bool { return f.ID == id })
}

// Add bookmarks fact. Adding a bookmarked fact again changes nothing.
func (s *Set) Add(ctx context.Context, fact domain.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(fact.ID) >= 0 {
		return nil
	}
	s.facts = append(s.facts, fact)
	return s.persist(ctx)
}

// Remove drops the bookmark of id, if any.
func (s *Set) Remove(ctx context.Context, id domain.FactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil
	}
	s.facts = slices.Delete(s.facts, i, i+1)
	return s.persist(ctx)
}

// IsBookmarked reports whether id is bookmarked.
func (s *Set) IsBookmarked(id domain.FactID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index(id) >= 0
}

// Get returns the bookmarked snapshot of id.
func (s *Set) Get(id domain.FactID) (domain.Fact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.facts[i], true
	}
	return domain.Fact{}, false
}

// List returns the bookmarked facts in insertion order.
func (s *Set) List() []domain.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Fact{}, s.facts...)
}

// persist must be called with the lock held.
func (s *Set) persist(ctx context.Context) error {
	facts := s.facts
	if facts == nil {
		facts = []domain.Fact{}
	}
	if err := s.doc.Save(ctx, facts); err != nil {
		s.logger.Warn("Failed to save bookmarks", "error", err)
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}
	return nil
}
