package ports

import (
	"context"
	"io"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// DocumentMeta is the caller-supplied descriptor accompanying raw bytes.
type DocumentMeta struct {
	Ticker   string
	DocClass domain.DocClass
	Period   string
	Origin   string
	AsOf     string // ISO date (2006-01-02)
	Actor    string
}

// DocumentIngestor validates, archives and registers a raw document, then
// hands it to the extraction pipeline. Duplicates yield IsNew=false.
type DocumentIngestor interface {
	Ingest(ctx context.Context, meta DocumentMeta, filename string, body io.Reader) (*domain.IngestReceipt, error)
}

// DocumentProcessor extracts and persists structured records for one
// registered document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) (*domain.ExtractionSummary, error)
}

// ChatterMerger merges feed item batches, isolating each origin.
type ChatterMerger interface {
	Merge(ctx context.Context, actor string, batches []domain.OriginBatch) (*domain.MergeSummary, error)
	MergeFromSources(ctx context.Context, actor, ticker string) (*domain.MergeSummary, error)
}

// QueryRequest selects records for a verified read.
type QueryRequest struct {
	Actor  string
	Ticker string
	Class  domain.RecordClass
	Table  string
	Period string
	Metric string
	Limit  int
}

// VerifiedReader is the query surface. Every call resolves to one of the
// four access statuses and appends exactly one audit event.
type VerifiedReader interface {
	Query(ctx context.Context, req QueryRequest) (*domain.AccessResult, error)
}
