// Package bootstrap wires configuration, storage, transport and usecases
// into a runnable application for both the api and the worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/verified-ingest/internal/config"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
	"github.com/kirillkom/verified-ingest/internal/core/usecase"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/extractor/workbook"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/feeds/rss"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/queue/nats"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/resilience"
	"github.com/kirillkom/verified-ingest/internal/infrastructure/storage/localfs"
)

// Feed endpoints per whitelisted origin. The %s placeholder receives the
// ticker. Origins without an endpoint here are validated for manual batches
// but not fetched by the scheduler.
var feedEndpoints = map[string]string{
	"NSE":  "https://feeds.nseindia.example/announcements.rss?symbol=%s",
	"BSE":  "https://feeds.bseindia.example/notices.rss?scrip=%s",
	"SEBI": "https://feeds.sebi.example/filings.rss?entity=%s",
}

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Docs  ports.DocumentStore

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	MergeUC   ports.ChatterMerger
	QueryUC   ports.VerifiedReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	records := postgres.NewRecordRepository(db)
	chatter := postgres.NewChatterRepository(db)
	audit := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	validator := validate.New(cfg.OriginWhitelist)

	extractors := map[string]ports.TableExtractor{
		".xlsx": workbook.New(),
		".xlsm": workbook.New(),
		".pdf":  pdftext.New(),
	}

	var sources []ports.FeedSource
	for _, origin := range cfg.OriginWhitelist {
		template, ok := feedEndpoints[origin]
		if !ok {
			continue
		}
		sources = append(sources, rss.New(origin, template, rss.Options{
			Timeout:            cfg.StorageTimeout,
			ResilienceExecutor: executor,
		}))
	}

	ingestUC := usecase.NewIngestDocumentUseCase(validator, docs, storage, queue, audit, cfg.StorageTimeout)
	processUC := usecase.NewProcessDocumentUseCase(validator, docs, records, storage, audit, extractors)
	mergeUC := usecase.NewMergeChatterUseCase(validator, chatter, audit, sources)
	queryUC := usecase.NewVerifiedQueryUseCase(records, chatter, audit, usecase.StalenessThresholds{
		AnnualStaleDays:    cfg.AnnualStaleDays,
		QuarterlyStaleDays: cfg.QuarterlyStaleDays,
		ChatterStaleHours:  cfg.ChatterStaleHours,
	})

	return &App{
		Config: cfg,
		Queue:  queue,
		Docs:   docs,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		MergeUC:   mergeUC,
		QueryUC:   queryUC,

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
