package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zoesolar/intake/internal/config"
	"github.com/zoesolar/intake/internal/core/ports"
	"github.com/zoesolar/intake/internal/core/usecase"
	"github.com/zoesolar/intake/internal/engine/classify"
	"github.com/zoesolar/intake/internal/engine/dedup"
	"github.com/zoesolar/intake/internal/engine/privacy"
	"github.com/zoesolar/intake/internal/engine/rules"
	"github.com/zoesolar/intake/internal/export"
	"github.com/zoesolar/intake/internal/infrastructure/queue/nats"
	"github.com/zoesolar/intake/internal/infrastructure/repository/postgres"
	"github.com/zoesolar/intake/internal/infrastructure/resilience"
	"github.com/zoesolar/intake/internal/infrastructure/storage/localfs"
	"github.com/zoesolar/intake/internal/infrastructure/vision/gemini"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  ports.BatchIngestor
	ProcessUC ports.BatchProcessor
	Resolver  ports.DocumentResolver
	Exporter  *export.Service

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.PublishPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	vision := gemini.New(gemini.Config{
		BaseURL:           cfg.GeminiBaseURL,
		Model:             cfg.GeminiModel,
		APIKey:            cfg.GeminiAPIKey,
		RequestsPerMinute: cfg.GeminiRequestsPerMinute,
		Executor:          resilience.NewExecutor(resilience.VisionPolicy()),
	})

	hasher := dedup.NewHasher()
	matcher := dedup.NewMatcher(dedup.Config{
		ExactAmountTolerance: cfg.ExactAmountTolerance,
		FuzzyAmountTolerance: cfg.FuzzyAmountTolerance,
		ScoreThreshold:       cfg.MatchScoreThreshold,
	})
	classifier := classify.New(cfg.ReviewScoreThreshold)
	ruleEngine := rules.New(rules.Config{
		NumberPrefix:     cfg.NumberPrefix,
		InvoiceRecipient: cfg.InvoiceRecipient,
		StorageLocation:  cfg.StorageLocation,
		SmallAmountLimit: cfg.SmallAmountLimit,
	})
	private := privacy.New()

	ingestUC := usecase.NewAcceptBatchUseCase(repo, storage, queue, hasher)
	processUC := usecase.NewProcessBatchUseCase(repo, storage, vision, matcher, classifier, ruleEngine, private, logger)
	resolver := usecase.NewResolveUseCase(repo, storage, vision, matcher, classifier, ruleEngine, private)
	exporter := export.NewService(repo, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Resolver:  resolver,
		Exporter:  exporter,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
