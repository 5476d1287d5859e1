package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mika/internal/agent"
	"mika/internal/config"
	"mika/internal/server"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := config.Load()

	tokens, err := server.OpenTokenStore(cfg.TokenDBPath)
	if err != nil {
		slog.Error("failed to open token store", "error", err)
		os.Exit(1)
	}
	defer tokens.Close()

	if err := tokens.PurgeExpired(context.Background(), time.Now()); err != nil {
		slog.Warn("failed to purge expired tokens", "error", err)
	}

	runner := agent.NewRunner(agent.RunnerConfig{
		Model:        cfg.DefaultModel,
		MaxTurns:     cfg.MaxTurns,
		RunTimeout:   cfg.RunTimeout,
		SystemPrompt: cfg.SystemPrompt,
		Offline:      os.Getenv("MIKA_AGENT_OFFLINE") == "1",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(cfg, tokens, runner).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
