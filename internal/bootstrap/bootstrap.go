package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docparse-gateway/internal/config"
	"github.com/kirillkom/docparse-gateway/internal/core/ports"
	"github.com/kirillkom/docparse-gateway/internal/core/usecase"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/export"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/inspect"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/llamaparse"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/resilience"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.JobRepository
	Storage  ports.ObjectStorage
	Reporter ports.UsageReporter

	SubmitUC  ports.DocumentSubmitter
	ProcessUC ports.JobProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var executor *resilience.Executor
	if cfg.ResilienceEnabled {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	parserOpts := []llamaparse.Option{
		llamaparse.WithPollInterval(time.Duration(cfg.LlamaParsePollIntervalMS) * time.Millisecond),
		llamaparse.WithPollTimeout(time.Duration(cfg.LlamaParsePollTimeoutSec) * time.Second),
		llamaparse.WithExecutor(executor),
	}
	if cfg.LlamaParseRateLimitRPS > 0 {
		parserOpts = append(parserOpts, llamaparse.WithRateLimit(float64(cfg.LlamaParseRateLimitRPS), cfg.LlamaParseRateLimitBurst))
	}
	parser, err := llamaparse.New(llamaparse.Config{
		APIKey:  cfg.LlamaParseAPIKey,
		BaseURL: cfg.LlamaParseBaseURL,
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("init parse client: %w", err)
	}

	inspector := inspect.New(cfg.InspectMaxPages)
	reporter := export.NewService(repo, logger)

	submitUC := usecase.NewSubmitDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessJobUseCase(repo, storage, inspector, parser)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Storage:  storage,
		Reporter: reporter,

		SubmitUC:  submitUC,
		ProcessUC: processUC,

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
