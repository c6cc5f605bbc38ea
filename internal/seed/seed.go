// Package seed assembles the static fact pool from the embedded default deck,
// local deck directories and git-hosted deck repositories.
package seed

import (
	"context"
	_ "embed"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/curio/internal/domain"
	"github.com/conorfennell/curio/internal/gitsource"
	"github.com/conorfennell/curio/internal/knol"
	"github.com/conorfennell/curio/internal/parser"
)

//go:embed default_deck.md
var defaultDeck string

const (
	defaultXP         = 10
	defaultDifficulty = domain.Medium
)

// Config lists where decks come from.
type Config struct {
	Dirs           []string
	Repos          []string
	ReposDir       string
	IncludeDefault bool
}

// Load builds the seed pool. Unreadable sources and invalid facts are logged
// and skipped; Load never fails. Facts without an id get their content hash
// and only the first fact of an id is kept.
func Load(ctx context.Context, cfg Config, logger *slog.Logger) []domain.Fact {
	if logger == nil {
		logger = slog.Default()
	}
	l := &loader{logger: logger, seen: make(map[domain.FactID]bool)}

	if cfg.IncludeDefault {
		facts, err := parser.Parse(strings.NewReader(defaultDeck))
		l.add("default deck", facts, err)
	}

	for _, dir := range cfg.Dirs {
		l.loadDir(dir)
	}

	if len(cfg.Repos) > 0 {
		reposDir := cfg.ReposDir
		if reposDir == "" {
			reposDir = "repos"
		}
		if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
			logger.Error("Failed to create repos directory", "path", reposDir, "error", err)
		} else {
			for _, repo := range cfg.Repos {
				l.loadRepo(ctx, reposDir, repo)
			}
		}
	}

	logger.Info("Seed pool loaded",
		"facts", len(l.facts),
		"duplicates", l.duplicates,
		"errors", l.errors,
	)
	return l.facts
}

type loader struct {
	logger     *slog.Logger
	facts      []domain.Fact
	seen       map[domain.FactID]bool
	duplicates int
	errors     int
}

func (l *loader) loadRepo(ctx context.Context, reposDir, repo string) {
	localPath, err := gitsource.LocalPath(reposDir, repo)
	if err != nil {
		l.logger.Error("Error determining local path for git repo", "url", repo, "error", err)
		l.errors++
		return
	}
	if err := gitsource.Sync(ctx, repo, localPath); err != nil {
		// A stale checkout is still better than nothing.
		l.logger.Warn("Error syncing git repo", "url", repo, "error", err)
		if _, statErr := os.Stat(localPath); statErr != nil {
			l.errors++
			return
		}
	}
	l.loadDir(localPath)
}

func (l *loader) loadDir(dir string) {
	before := len(l.facts)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md":
			facts, err := parser.ParseFile(path)
			l.add(path, facts, err)
		case ".xlsx":
			facts, err := ReadWorkbook(path)
			l.add(path, facts, err)
		case ".csv":
			facts, err := ReadCSV(path)
			l.add(path, facts, err)
		}
		return nil
	})
	if walkErr != nil {
		l.logger.Error("Error walking directory", "path", dir, "error", walkErr)
		l.errors++
		return
	}
	l.logger.Debug("Deck directory loaded", "path", dir, "facts", len(l.facts)-before)
}

// add keeps the valid facts of one deck. err carries the deck's parse
// errors; the facts that did parse are still added.
func (l *loader) add(origin string, facts []domain.Fact, err error) {
	if err != nil {
		l.logger.Warn("Deck has malformed facts", "deck", origin, "error", err)
		l.errors++
	}
	for _, f := range facts {
		f = withDefaults(f)
		if err := domain.Validate(f); err != nil {
			l.logger.Warn("Skipping invalid fact", "deck", origin, "title", f.Title, "error", err)
			l.errors++
			continue
		}
		if l.seen[f.ID] {
			l.logger.Debug("Skipping duplicate fact", "deck", origin, "id", f.ID)
			l.duplicates++
			continue
		}
		l.seen[f.ID] = true
		l.facts = append(l.facts, f)
	}
}

func withDefaults(f domain.Fact) domain.Fact {
	f.Topic = strings.ToLower(strings.TrimSpace(f.Topic))
	if f.ID == "" {
		f.ID = knol.FactID(f.Topic, f.Title, f.Blurb)
	}
	if f.XPValue == 0 {
		f.XPValue = defaultXP
	}
	if f.Difficulty == "" {
		f.Difficulty = defaultDifficulty
	}
	if f.Body == "" {
		f.Body = f.Blurb
	}
	return f
}
