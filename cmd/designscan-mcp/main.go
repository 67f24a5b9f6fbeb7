// Package main provides the entry point for the designscan MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/designscan/internal/app"
	"github.com/raphaelgruber/designscan/internal/config"
	"github.com/raphaelgruber/designscan/internal/server"
	"github.com/raphaelgruber/designscan/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// stdout carries the MCP protocol, so logs go to stderr and the log file only.
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, "designscan-mcp")
	defer func() { _ = cleanup() }()

	logger.Info("designscan-mcp starting",
		"version", version,
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing job engine")
		_ = a.Close(context.Background())
	}()

	deps := &tools.Dependencies{
		Jobs:   a.Analysis,
		Logger: logger,
	}
	if a.Search != nil {
		deps.Search = a.Search
	}

	srv := server.New(version, logger)
	srv.Setup(deps)
	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
