package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockmarket/internal/config"
	"stockmarket/internal/store"
)

// The worker prunes archived results older than STOCKMARKET_RETENTION.
// It needs a shared archive; the in-memory backend is per process.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if kind, _, _ := config.ArchiveBackend(cfg.ArchiveDSN); kind == config.ArchiveMemory {
		logger.Error("worker needs a postgres or sqlite ARCHIVE_DSN")
		os.Exit(1)
	}
	archive, err := store.Open(ctx, cfg.ArchiveDSN, logger)
	if err != nil {
		logger.Error("archive open failed", "err", err)
		os.Exit(1)
	}
	defer archive.Close()

	prune := func() error {
		cutoff := time.Now().Add(-cfg.Retention)
		n, err := archive.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("prune complete", "removed", n, "before", cutoff.UTC().Format(time.RFC3339))
		return nil
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("STOCKMARKET_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if err := prune(); err != nil {
			logger.Error("prune failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.PruneEvery)
	defer ticker.Stop()

	logger.Info("worker started", "prune_every", cfg.PruneEvery.String(), "retention", cfg.Retention.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := prune(); err != nil {
				logger.Error("prune failed", "err", err)
			}
		}
	}
}
