package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/verified-ingest/internal/bootstrap"
	"github.com/kirillkom/verified-ingest/internal/config"
	"github.com/kirillkom/verified-ingest/internal/observability/logging"
	"github.com/kirillkom/verified-ingest/internal/observability/metrics"
)

const serviceName = "verified-ingest-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scheduler := cron.New()
	if len(cfg.ActiveTickers) > 0 {
		_, err := scheduler.AddFunc(cfg.MergeSchedule, func() {
			mergeActiveTickers(ctx, app, workerMetrics, cfg.ActiveTickers)
		})
		if err != nil {
			slog.Error("schedule chatter merge", "schedule", cfg.MergeSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
		slog.Info("chatter merge scheduled", "schedule", cfg.MergeSchedule, "tickers", len(cfg.ActiveTickers))
	}

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentRegistered(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if doc, lookupErr := app.Docs.GetByID(processCtx, documentID); lookupErr == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.IngestedAt))
		}

		workerMetrics.StartExtraction()
		start := time.Now()
		summary, err := app.ProcessUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishExtraction(serviceName, time.Since(start), err)
		if summary != nil {
			workerMetrics.RecordExtractionCounts(serviceName, summary.Inserted, summary.Skipped, summary.Rejected, summary.Errored)
			slog.Info("document processed",
				"document_id", documentID,
				"inserted", summary.Inserted,
				"skipped", summary.Skipped,
				"rejected", summary.Rejected,
				"errored", summary.Errored,
			)
		}
		return err
	})
	if err != nil {
		slog.Error("worker subscribe error", "error", err)
		os.Exit(1)
	}
}

func mergeActiveTickers(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics, tickers []string) {
	for _, ticker := range tickers {
		mergeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		summary, err := app.MergeUC.MergeFromSources(mergeCtx, "scheduler", ticker)
		cancel()
		if err != nil {
			slog.Error("scheduled merge failed", "ticker", ticker, "error", err)
			continue
		}
		workerMetrics.RecordMergeCounts(serviceName, "all", summary.Inserted, summary.Skipped, len(summary.Errors))
		slog.Info("chatter merged",
			"ticker", ticker,
			"inserted", summary.Inserted,
			"skipped", summary.Skipped,
			"errored", len(summary.Errors),
		)
	}
}
