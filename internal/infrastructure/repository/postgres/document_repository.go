package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
)

// DocumentRepository owns SourceDocument identity.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// RegisterIfNew performs the atomic check-and-insert for document identity.
// The unique constraint on (ticker, doc_class, content_hash) is the only
// coordination between concurrent ingestion workers: a constraint collision
// is an expected duplicate outcome, not a failure.
func (r *DocumentRepository) RegisterIfNew(ctx context.Context, doc *domain.SourceDocument) (ports.RegisterOutcome, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO source_documents (id, ticker, doc_class, period, origin, content_hash, locator, as_of, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (ticker, doc_class, content_hash) DO NOTHING
RETURNING id
`, doc.ID, doc.Ticker, string(doc.DocClass), doc.Period, doc.Origin, doc.ContentHash, doc.Locator, doc.AsOf, doc.IngestedAt)

	var insertedID string
	err := row.Scan(&insertedID)
	if err == nil {
		return ports.RegisterOutcome{IsNew: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ports.RegisterOutcome{}, domain.WrapError(domain.ErrConnectivity, "register document", err)
	}

	// Conflict path: the row already exists, possibly inserted by a
	// concurrent worker a moment ago.
	row = r.db.QueryRowContext(ctx, `
SELECT id FROM source_documents
WHERE ticker = $1 AND doc_class = $2 AND content_hash = $3
`, doc.Ticker, string(doc.DocClass), doc.ContentHash)

	var existingID string
	if err := row.Scan(&existingID); err != nil {
		return ports.RegisterOutcome{}, domain.WrapError(domain.ErrConnectivity, "lookup existing document", err)
	}
	return ports.RegisterOutcome{IsNew: false, ExistingID: existingID}, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, ticker, doc_class, period, origin, content_hash, locator, as_of, ingested_at
FROM source_documents
WHERE id = $1
`, id)

	var doc domain.SourceDocument
	var class string
	err := row.Scan(&doc.ID, &doc.Ticker, &class, &doc.Period, &doc.Origin, &doc.ContentHash, &doc.Locator, &doc.AsOf, &doc.IngestedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", err)
		}
		return nil, domain.WrapError(domain.ErrConnectivity, "get document", err)
	}
	doc.DocClass = domain.DocClass(class)
	return &doc, nil
}

func (r *DocumentRepository) AddAsset(ctx context.Context, asset *domain.DocumentAsset) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_assets (id, document_id, asset_type, locator, interpreted, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, asset.ID, asset.DocumentID, string(asset.AssetType), asset.Locator, asset.Interpreted, asset.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrConnectivity, "add document asset", err)
	}
	return nil
}
