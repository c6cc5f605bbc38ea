// Package gamification turns quiz outcomes into experience points and keeps
// the user profile.
package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/storage"
)

// XPPerLevel is the fixed size of every level.
const XPPerLevel = 100

const (
	defaultDisplayName = "CurioExplorer"
	defaultAvatar      = "🧠"
)

// QuizResult is the outcome of completing a quiz.
type QuizResult struct {
	XPGained         int  `json:"xpGained"`
	IsCorrect        bool `json:"isCorrect"`
	AlreadyCompleted bool `json:"alreadyCompleted"`
}

// XPProgress places the total XP on the level schedule.
type XPProgress struct {
	CurrentLevel       int     `json:"currentLevel"`
	XPInCurrentLevel   int     `json:"xpInCurrentLevel"`
	XPForNextLevel     int     `json:"xpForNextLevel"`
	ProgressPercentage float64 `json:"progressPercentage"`
	TotalXP            int     `json:"totalXP"`
}

// Progress derives the level progress of totalXP.
func Progress(totalXP int) XPProgress {
	in := totalXP % XPPerLevel
	return XPProgress{
		CurrentLevel:       totalXP/XPPerLevel + 1,
		XPInCurrentLevel:   in,
		XPForNextLevel:     XPPerLevel,
		ProgressPercentage: float64(in) / XPPerLevel * 100,
		TotalXP:            totalXP,
	}
}

// Ledger owns the profile. Every mutation is persisted before it returns.
type Ledger struct {
	mu        sync.Mutex
	doc       *storage.Document[domain.UserProfile]
	logger    *slog.Logger
	profile   domain.UserProfile
	completed map[domain.FactID]bool
}

// NewLedger loads the profile stored for profileID. Missing or corrupt data
// yields a fresh default profile.
func NewLedger(ctx context.Context, kv storage.KV, profileID string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		doc:    storage.NewDocument[domain.UserProfile](kv, storage.Key(storage.ProfileKey, profileID)),
		logger: logger,
	}
	l.profile = l.load(ctx)
	l.completed = make(map[domain.FactID]bool, len(l.profile.CompletedFacts))
	for _, id := range l.profile.CompletedFacts {
		l.completed[id] = true
	}
	return l
}

func (l *Ledger) load(ctx context.Context) domain.UserProfile {
	p, ok, err := l.doc.Load(ctx)
	if err != nil {
		l.logger.Warn("Discarding stored profile", "key", l.doc.Key(), "error", err)
		return newProfile()
	}
	if !ok {
		return newProfile()
	}
	if err := domain.Validate(p); err != nil {
		l.logger.Warn("Discarding invalid profile", "key", l.doc.Key(), "error", err)
		return newProfile()
	}

	// completedFacts is a set; a hand-edited document may repeat ids.
	seen := make(map[domain.FactID]bool, len(p.CompletedFacts))
	completed := make([]domain.FactID, 0, len(p.CompletedFacts))
	for _, id := range p.CompletedFacts {
		if !seen[id] {
			seen[id] = true
			completed = append(completed, id)
		}
	}
	p.CompletedFacts = completed
	p.PreferredTopics = domain.NormalizeTopics(p.PreferredTopics)
	return p
}

func newProfile() domain.UserProfile {
	return domain.UserProfile{
		ID:              uuid.NewString(),
		DisplayName:     defaultDisplayName,
		Avatar:          defaultAvatar,
		CompletedFacts:  []domain.FactID{},
		PreferredTopics: []string{},
	}
}

// CompleteQuiz awards XP for the first completion of a fact: its full value
// when correct, half of it rounded down otherwise. Later completions of the
// same fact gain nothing.
func (l *Ledger) CompleteQuiz(ctx context.Context, fact domain.Fact, isCorrect bool) (QuizResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.completed[fact.ID] {
		return QuizResult{IsCorrect: isCorrect, AlreadyCompleted: true}, nil
	}

	gain := max(fact.XPValue, 0)
	if !isCorrect {
		gain /= 2
	}
	l.completed[fact.ID] = true
	l.profile.CompletedFacts = append(l.profile.CompletedFacts, fact.ID)
	l.profile.TotalXP += gain

	l.logger.Debug("Quiz completed", "fact_id", fact.ID, "correct", isCorrect, "xp_gained", gain, "total_xp", l.profile.TotalXP)
	return QuizResult{XPGained: gain, IsCorrect: isCorrect}, l.persist(ctx)
}

// IsFactCompleted reports whether the fact already contributed XP.
func (l *Ledger) IsFactCompleted(id domain.FactID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed[id]
}

// XPProgress derives the current level progress.
func (l *Ledger) XPProgress() XPProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Progress(l.profile.TotalXP)
}

// Profile returns a copy of the profile.
func (l *Ledger) Profile() domain.UserProfile {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.profile
	p.CompletedFacts = slices.Clone(p.CompletedFacts)
	p.PreferredTopics = slices.Clone(p.PreferredTopics)
	return p
}

// PreferredTopics returns the ordered preferred topics.
func (l *Ledger) PreferredTopics() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.profile.PreferredTopics)
}

// SetPreferredTopics replaces the preferred topics.
func (l *Ledger) SetPreferredTopics(ctx context.Context, topics []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profile.PreferredTopics = domain.NormalizeTopics(topics)
	return slices.Clone(l.profile.PreferredTopics), l.persist(ctx)
}

// UpdateIdentity changes the display name and avatar. Blank values keep the
// current ones.
func (l *Ledger) UpdateIdentity(ctx context.Context, displayName, avatar string) (domain.UserProfile, error) {
	l.mu.Lock()
	if name := strings.TrimSpace(displayName); name != "" {
		l.profile.DisplayName = name
	}
	if a := strings.TrimSpace(avatar); a != "" {
		l.profile.Avatar = a
	}
	err := l.persist(ctx)
	l.mu.Unlock()
	return l.Profile(), err
}

// persist must be called with the lock held.
func (l *Ledger) persist(ctx context.Context) error {
	if err := l.doc.Save(ctx, l.profile); err != nil {
		l.logger.Warn("Failed to save profile", "error", err)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
