// Package app wires the designscan services from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/designscan/internal/config"
	"github.com/raphaelgruber/designscan/internal/db"
	"github.com/raphaelgruber/designscan/internal/figma"
	"github.com/raphaelgruber/designscan/internal/jobs"
	"github.com/raphaelgruber/designscan/internal/llm"
	"github.com/raphaelgruber/designscan/internal/metrics"
	"github.com/raphaelgruber/designscan/internal/service"
)

// App holds every long-lived dependency of a designscan process.
type App struct {
	Analysis *service.AnalysisService
	Search   *service.SearchService
	Metrics  *metrics.Collector

	db     *db.Client
	logger *slog.Logger
}

// New builds the job engine. The vector index is connected only when an embedding provider is set.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	figmaClient, err := figma.NewClient(cfg.FigmaToken, cfg.FigmaAPIURL)
	if err != nil {
		return nil, err
	}
	resolver := figma.NewResolver(figmaClient,
		figma.WithBatchSize(cfg.ResolveBatchSize),
		figma.WithBatchDelay(cfg.ResolveDelay),
		figma.WithLogger(logger),
	)

	analyzer, err := llm.NewAnalyzer(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vision analyzer: %w", err)
	}
	if analyzer == nil {
		logger.Warn("vision analysis disabled, frames will be skipped", "provider", cfg.LLMProvider)
	}

	a := &App{Metrics: mc, logger: logger}

	var indexer *service.Indexer
	embedder, err := llm.NewEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if embedder != nil {
		dbClient, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect vector index: %w", err)
		}
		if err := dbClient.InitSchema(ctx, embedder.Dimension()); err != nil {
			_ = dbClient.Close(ctx)
			return nil, err
		}
		a.db = dbClient
		indexer = service.NewIndexer(embedder, dbClient, cfg.MinContentLength, mc, logger)
		a.Search = service.NewSearchService(embedder, dbClient, mc)
		logger.Info("frame index enabled", "embed_model", embedder.Model(), "dimension", embedder.Dimension())
	}

	store := jobs.NewStore(
		jobs.WithCapacity(cfg.StoreCapacity),
		jobs.WithSlack(cfg.StoreSlack),
		jobs.WithLogger(logger),
	)

	deps := service.Deps{
		Store:    store,
		Fetcher:  figmaClient,
		Resolver: resolver,
		Analyzer: analyzer,
		Indexer:  indexer,
		Metrics:  mc,
		Logger:   logger,
	}
	a.Analysis = service.NewAnalysisService(deps, service.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		MaxItems:       cfg.MaxItems,
	})
	return a, nil
}

// Close stops running jobs and closes the index connection.
func (a *App) Close(ctx context.Context) error {
	a.Analysis.Close()
	if a.db != nil {
		return a.db.Close(ctx)
	}
	return nil
}

// WipeIndex deletes every indexed frame. Use for testing only.
func (a *App) WipeIndex(ctx context.Context) error {
	if a.db == nil {
		return service.ErrIndexUnavailable
	}
	return a.db.WipeData(ctx)
}
