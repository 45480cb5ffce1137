package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/grapher/internal/catalog"
	"github.com/JonMunkholm/grapher/internal/config"
	"github.com/JonMunkholm/grapher/internal/logging"
	"github.com/JonMunkholm/grapher/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envErr := godotenv.Overload()

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	closeLogs := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.SeqURL)
	defer closeLogs()

	if envErr != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}
	slog.Info("configuration loaded", "config", cfg.String())

	loader := catalog.NewLoader(catalog.NewRegistry(),
		catalog.WithDelimiter(cfg.Data.Delimiter.Rune()),
		catalog.WithMaxBytes(cfg.Data.MaxUploadBytes),
		catalog.WithLogger(slog.Default()),
	)

	// Load configured datasets. A bad file is logged and skipped.
	ctx := context.Background()
	paths := append(append([]string{}, cfg.Data.LegacyPaths...), cfg.Data.DelimitedPaths...)
	for _, path := range paths {
		if _, err := loader.LoadFile(ctx, "", path); err != nil {
			slog.Error("failed to load dataset", "path", path, "error", err, "code", catalog.MapError(err).Code)
		}
	}
	slog.Info("datasets loaded", "count", loader.Registry().Count(), "configured", len(paths))

	server := web.NewServer(loader, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		closeLogs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
