package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/docparse-gateway/internal/bootstrap"
	"github.com/kirillkom/docparse-gateway/internal/config"
	"github.com/kirillkom/docparse-gateway/internal/core/domain"
	"github.com/kirillkom/docparse-gateway/internal/observability/logging"
	"github.com/kirillkom/docparse-gateway/internal/observability/metrics"
)

const serviceName = "docparse-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Setup(serviceName, "info").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	jobTimeout := time.Duration(cfg.JobTimeoutSec) * time.Second

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeParseRequested(ctx, func(handlerCtx context.Context, jobID string) error {
		processCtx := handlerCtx
		if jobTimeout > 0 {
			var cancel context.CancelFunc
			processCtx, cancel = context.WithTimeout(handlerCtx, jobTimeout)
			defer cancel()
		}

		if job, lookupErr := app.Repo.GetByID(processCtx, jobID); lookupErr == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(job.CreatedAt))
		}

		workerMetrics.StartJob()
		started := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, jobID)
		workerMetrics.FinishJob(serviceName, time.Since(started), processErr)

		if processErr == nil {
			if job, lookupErr := app.Repo.GetByID(processCtx, jobID); lookupErr == nil && job.Status == domain.StatusReady {
				workerMetrics.ObserveUsage(serviceName, job.Usage.CreditsUsed, job.Pages, job.Usage.JobIsCacheHit)
			}
		}
		return processErr
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
