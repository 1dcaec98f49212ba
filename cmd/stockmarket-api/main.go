package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockmarket/internal/api"
	"stockmarket/internal/auth"
	"stockmarket/internal/config"
	"stockmarket/internal/journal"
	"stockmarket/internal/lobby"
	"stockmarket/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	archive, err := store.Open(ctx, cfg.ArchiveDSN, logger)
	if err != nil {
		logger.Error("archive open failed", "err", err)
		os.Exit(1)
	}
	defer archive.Close()

	secret := cfg.TokenSecret
	if secret == "" {
		if secret, err = auth.RandomSecret(); err != nil {
			logger.Error("token secret", "err", err)
			os.Exit(1)
		}
		logger.Warn("STOCKMARKET_TOKEN_SECRET not set; seat tokens will not survive a restart")
	}
	tokens, err := auth.NewSigner(secret, cfg.TokenTTL)
	if err != nil {
		logger.Error("token signer", "err", err)
		os.Exit(1)
	}

	opts := lobby.Options{
		Rules:   cfg.Rules,
		Archive: archive,
		Logger:  logger,
	}
	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, "events")
		defer jw.Close()
		opts.Journal = jw
	}
	svc := lobby.New(opts)

	server := api.New(cfg, logger, tokens, svc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(cfg.ReapEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := svc.Reap(cfg.IdleTTL); n > 0 {
					logger.Info("reaped idle tables", "count", n)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("stockmarket api listening", "addr", cfg.Addr, "journal", cfg.JournalDir != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
