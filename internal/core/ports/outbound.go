package ports

import (
	"context"
	"io"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// RegisterOutcome reports the atomic check-and-insert result for a document.
// Exactly one of two concurrent writers of the same content observes
// IsNew=true; the other receives the existing id.
type RegisterOutcome struct {
	IsNew      bool
	ExistingID string
}

// DocumentStore owns SourceDocument identity. RegisterIfNew must be
// race-safe: it relies on a storage-level unique constraint on
// (ticker, doc_class, content_hash) and reports a collision as a duplicate
// outcome, never as an error.
type DocumentStore interface {
	RegisterIfNew(ctx context.Context, doc *domain.SourceDocument) (RegisterOutcome, error)
	GetByID(ctx context.Context, id string) (*domain.SourceDocument, error)
	AddAsset(ctx context.Context, asset *domain.DocumentAsset) error
}

// RecordStore persists extracted records. Upsert is keyed by
// (ticker, period, table, metric, as_of); a conflicting row is updated in
// place and reported as not-inserted, never as an error.
type RecordStore interface {
	Upsert(ctx context.Context, rec *domain.ExtractedRecord) (inserted bool, err error)
	Query(ctx context.Context, ticker string, class domain.DocClass, table, period, metric string) ([]domain.ExtractedRecord, error)
}

// ChatterStore persists chatter records idempotently on
// (origin, origin_local_id). Insert reports a conflict as inserted=false.
type ChatterStore interface {
	Insert(ctx context.Context, rec *domain.ChatterRecord) (inserted bool, err error)
	Recent(ctx context.Context, ticker string, limit int) ([]domain.ChatterRecord, error)
}

// AuditSink appends trail events. It never fails silently: a sink error must
// abort the originating operation.
type AuditSink interface {
	Record(ctx context.Context, event *domain.AuditEvent) error
}

// ObjectStorage archives raw document bytes and opaque assets.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue hands registered documents to extraction workers.
type MessageQueue interface {
	PublishDocumentRegistered(ctx context.Context, documentID string) error
	SubscribeDocumentRegistered(ctx context.Context, handler func(context.Context, string) error) error
}

// TableExtractor turns a stored document into candidate records, rejections
// and opaque assets. Extraction is deterministic: it never infers values
// from narrative text or chart pixels.
type TableExtractor interface {
	Extract(ctx context.Context, doc *domain.SourceDocument, data io.Reader) (*domain.Extraction, error)
}

// FeedSource is one origin-specific chatter fetcher, already normalized to
// the common RawFeedItem shape.
type FeedSource interface {
	Origin() string
	Fetch(ctx context.Context, ticker string) ([]domain.RawFeedItem, error)
}
