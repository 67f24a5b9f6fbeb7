// Package main provides the HTTP and WebSocket server for designscan.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/designscan/internal/api"
	"github.com/raphaelgruber/designscan/internal/app"
	"github.com/raphaelgruber/designscan/internal/config"
)

func main() {
	wipeIndex := flag.Bool("wipe", false, "delete all indexed frames on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, "designscan-server")
	defer func() { _ = cleanup() }()

	logger.Info("starting designscan-server",
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"max_concurrency", cfg.MaxConcurrency,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	if *wipeIndex || os.Getenv("DESIGNSCAN_WIPE_INDEX") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := a.WipeIndex(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to wipe index", "error", err)
			os.Exit(1)
		}
		logger.Warn("frame index wiped")
	}

	var search api.FrameSearcher
	if a.Search != nil {
		search = a.Search
	}
	handler := api.New(a.Analysis, search, a.Metrics, logger).Handler()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api/jobs", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := a.Close(ctx); err != nil {
		logger.Error("failed to close app", "error", err)
	}

	logger.Info("server stopped")
}
