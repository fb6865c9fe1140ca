package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoesolar/intake/internal/bootstrap"
	"github.com/zoesolar/intake/internal/config"
	"github.com/zoesolar/intake/internal/observability/logging"
	"github.com/zoesolar/intake/internal/observability/metrics"
)

const serviceName = "intake-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker.metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker.metrics_server_error", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker.subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchAccepted(ctx, func(handlerCtx context.Context, documentIDs []string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
		defer cancel()

		observeQueueLag(processCtx, app, workerMetrics, documentIDs)

		workerMetrics.StartBatch()
		start := time.Now()
		summary, err := app.ProcessUC.ProcessBatch(processCtx, documentIDs)
		workerMetrics.FinishBatch(serviceName, time.Since(start), summary, err)
		if err != nil {
			return err
		}

		logger.Info("worker.batch_done",
			"total", summary.Total,
			"completed", summary.Completed,
			"review", summary.Review,
			"errors", summary.Errors,
			"duplicates", summary.Duplicates,
			"private", summary.Private,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

// observeQueueLag approximates delivery delay from the upload time of
// the first document in the batch.
func observeQueueLag(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, documentIDs []string) {
	if len(documentIDs) == 0 {
		return
	}
	doc, err := app.Repo.GetByID(ctx, documentIDs[0])
	if err != nil {
		return
	}
	m.ObserveQueueLag(serviceName, time.Since(doc.UploadedAt))
}
