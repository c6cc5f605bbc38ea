// Package progress records what the user has seen and answered, fact by fact.
package progress

import (
	"context"
	"log/slog"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

// Store persists the progress records of one profile as a single document.
type Store struct {
	doc    *storage.Document[[]domain.UserFactProgress]
	logger *slog.Logger
}

// NewStore creates a store for profileID on top of kv.
func NewStore(kv storage.KV, profileID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		doc:    storage.NewDocument[[]domain.UserFactProgress](kv, storage.Key(storage.ProgressKey, profileID)),
		logger: logger,
	}
}

// Load returns the stored records. Missing, unreadable or corrupt data is
// logged and yields an empty history. Records failing validation are dropped
// and only the first record of a fact id is kept.
func (s *Store) Load(ctx context.Context) []domain.UserFactProgress {
	stored, ok, err := s.doc.Load(ctx)
	if err != nil {
		s.logger.Warn("Discarding stored fact progress", "key", s.doc.Key(), "error", err)
		return []domain.UserFactProgress{}
	}
	if !ok {
		return []domain.UserFactProgress{}
	}

	records := make([]domain.UserFactProgress, 0, len(stored))
	seen := make(map[domain.FactID]bool, len(stored))
	for _, p := range stored {
		if err := domain.Validate(p); err != nil {
			s.logger.Warn("Dropping invalid progress record", "fact_id", p.FactID, "error", err)
			continue
		}
		if seen[p.FactID] {
			s.logger.Warn("Dropping duplicate progress record", "fact_id", p.FactID)
			continue
		}
		seen[p.FactID] = true
		records = append(records, p)
	}
	return records
}

// Save replaces the stored records. Saving the same list twice leaves the
// same durable state.
func (s *Store) Save(ctx context.Context, records []domain.UserFactProgress) error {
	if records == nil {
		records = []domain.UserFactProgress{}
	}
	return s.doc.Save(ctx, records)
}
