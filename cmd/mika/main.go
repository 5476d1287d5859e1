package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"mika/internal/cli"
)

func main() {
	_ = godotenv.Load()

	level := slog.LevelWarn
	if os.Getenv("MIKA_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	// Logs go to stderr so they never interleave with the panel.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mika:", err)
		os.Exit(1)
	}
}
