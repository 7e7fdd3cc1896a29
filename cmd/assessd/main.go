package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustIkra/rksi-hackotone/internal/async"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/export"
	"github.com/JustIkra/rksi-hackotone/internal/extract"
	"github.com/JustIkra/rksi-hackotone/internal/llm/openai"
	"github.com/JustIkra/rksi-hackotone/internal/metrics"
	"github.com/JustIkra/rksi-hackotone/internal/moderation"
	"github.com/JustIkra/rksi-hackotone/internal/pipeline"
	"github.com/JustIkra/rksi-hackotone/internal/recommend"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/resolve"
	"github.com/JustIkra/rksi-hackotone/internal/scoring"
	"github.com/JustIkra/rksi-hackotone/internal/server"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(log)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, log)
	if err != nil {
		log.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close(log)

	reports := repository.NewReportRepository(db, log)
	tasks := repository.NewExtractionTaskRepository(db, log)
	extracted := repository.NewExtractedMetricRepository(db, log)
	defs := repository.NewMetricDefRepository(db, log)
	weights := repository.NewWeightTableRepository(db, log)
	results := repository.NewScoringResultRepository(db, log)

	cache := vocab.NewCache(defs, cfg.Resolve.VocabTTL, log)

	var seed map[string]string
	if cfg.Resolve.SeedMappingPath != "" {
		seed, err = resolve.LoadSeedMapping(cfg.Resolve.SeedMappingPath)
		if err != nil {
			log.Error("seed mapping load failed", "path", cfg.Resolve.SeedMappingPath, "error", err)
			os.Exit(1)
		}
		log.Info("seed mapping loaded", "entries", len(seed))
	}

	llmClient := openai.NewClient(openai.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		RequestsPerSec: cfg.LLM.RequestsPerSec,
	}, log)

	resolver := resolve.NewResolver(resolve.Config{
		SimilarityThreshold: cfg.Resolve.SimilarityThreshold,
		MinMargin:           cfg.Resolve.MinMargin,
	}, seed, llmClient, log)

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:     cfg.Extract.Pdftotext,
		DocxConverter: cfg.Extract.DocxConverter,
		MaxPages:      cfg.Extract.MaxPages,
	}, log)

	coordinator := pipeline.NewCoordinator(
		pipeline.Config{MinConfidence: cfg.Extract.MinConfidence},
		reports, tasks, extracted, defs,
		extractor, llmClient, resolver, cache, log,
	)

	extractQueue := async.NewWorkerQueue("extract", coordinator.ProcessTask, log,
		async.WithWorkers(cfg.Extract.Workers),
		async.WithQueueSize(cfg.Extract.QueueSize),
		async.WithJobTimeout(cfg.Extract.JobTimeout),
	)

	generator := recommend.NewGenerator(results, weights, llmClient, log)
	recQueue := async.NewWorkerQueue("recommend", generator.Handle, log,
		async.WithWorkers(cfg.Recommend.Workers),
		async.WithQueueSize(cfg.Recommend.QueueSize),
		async.WithJobTimeout(cfg.Recommend.JobTimeout),
	)

	scoringSvc := scoring.NewService(scoring.Config{
		TopK:                   cfg.Scoring.TopK,
		RecommendationsEnabled: cfg.Recommend.Enabled,
	}, weights, extracted, results, cache, recQueue, log)
	metricsSvc := metrics.NewService(reports, extracted, cache, log)
	moderationSvc := moderation.NewService(defs, cache, log)
	exportSvc := export.NewService(results, weights, log)

	router := server.NewRouter(server.RouterConfig{
		Reports:        server.NewReportHandler(reports, tasks, coordinator, extractQueue, cfg.Server.UploadDir, cfg.Server.MaxUploadB, log),
		Metrics:        server.NewMetricsHandler(metricsSvc, defs, cache, log),
		Moderation:     server.NewModerationHandler(moderationSvc, log),
		Scoring:        server.NewScoringHandler(scoringSvc, weights, log),
		Export:         server.NewExportHandler(exportSvc, log),
		MaxUploadBytes: cfg.Server.MaxUploadB,
	})
	srv := server.New(cfg.Server.Addr, router, log)

	// Approved definitions created before embeddings were stored get
	// vectors on startup so similarity resolution can see them.
	go func() {
		if err := cache.BackfillEmbeddings(ctx, llmClient, 64); err != nil {
			log.Warn("embedding backfill failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	extractQueue.Shutdown(shutdownCtx)
	recQueue.Shutdown(shutdownCtx)
	log.Info("stopped")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
