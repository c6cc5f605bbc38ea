package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/conorfennell/curio/internal/app"
	"github.com/conorfennell/curio/internal/bookmarks"
	"github.com/conorfennell/curio/internal/config"
	"github.com/conorfennell/curio/internal/content"
	"github.com/conorfennell/curio/internal/gamification"
	"github.com/conorfennell/curio/internal/generator"
	"github.com/conorfennell/curio/internal/progress"
	"github.com/conorfennell/curio/internal/scheduler"
	"github.com/conorfennell/curio/internal/seed"
	"github.com/conorfennell/curio/internal/selector"
	"github.com/conorfennell/curio/internal/storage"
	"github.com/conorfennell/curio/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		slog.Error("Curio stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	logger.Info("Database opened", "path", cfg.DB)

	pool := seed.Load(ctx, seed.Config{
		Dirs:           cfg.Seed.Dirs,
		Repos:          cfg.Seed.Repos,
		ReposDir:       cfg.Seed.ReposDir,
		IncludeDefault: cfg.Seed.IncludeDefault,
	}, logger)

	srcCfg := content.Config{
		Topics:          cfg.Content.Topics,
		MinPool:         cfg.Content.MinPool,
		GenerateCount:   cfg.Content.GenerateCount,
		PrefillPerTopic: cfg.Content.PrefillPerTopic,
		BatchSize:       cfg.Content.BatchSize,
		BatchPause:      cfg.Content.BatchPause,
		RequestTimeout:  cfg.Content.RequestTimeout,
	}
	var gen content.Generator
	if cfg.Generator.Enabled {
		client := generator.New(generator.Config{
			BaseURL:           cfg.Generator.BaseURL,
			APIKey:            cfg.Generator.APIKey,
			Model:             cfg.Generator.Model,
			Temperature:       float32(cfg.Generator.Temperature),
			MaxTokens:         cfg.Generator.MaxTokens,
			MaxRetries:        cfg.Generator.MaxRetries,
			RequestsPerSecond: cfg.Generator.RequestsPerSecond,
		}, logger)
		gen = client
		srcCfg.Publisher = client.Name()
		logger.Info("Fact generation enabled", "model", cfg.Generator.Model, "base_url", cfg.Generator.BaseURL)
	}
	source := content.NewSource(pool, content.NewCache(cfg.Content.CacheTTL, time.Now), gen, srcCfg, content.WithLogger(logger))

	svc := app.New(app.Deps{
		Content:   source,
		Tracker:   progress.NewTracker(ctx, progress.NewStore(db, cfg.Profile, logger), progress.WithLogger(logger)),
		Selector:  selector.New(selector.WithCooldown(cfg.Selection.Cooldown)),
		Ledger:    gamification.NewLedger(ctx, db, cfg.Profile, logger),
		Bookmarks: bookmarks.New(ctx, db, cfg.Profile, logger),
		Closer:    db,
	}, app.WithTargetCount(cfg.Selection.TargetCount), app.WithLogger(logger))
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	sched := scheduler.New(logger)
	if gen != nil && cfg.Content.PrewarmInterval > 0 {
		if err := sched.Every(cfg.Content.PrewarmInterval, "prewarm", svc.Prewarm); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.Addr, "facts", len(pool))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
