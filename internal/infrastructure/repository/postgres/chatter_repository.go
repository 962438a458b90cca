package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// ChatterRepository persists chatter records idempotently. The unique
// constraint on (origin, origin_local_id) is the sole dedup key: re-fetches
// of the same item with edited content never create new rows.
type ChatterRepository struct {
	db *sql.DB
}

func NewChatterRepository(db *sql.DB) *ChatterRepository {
	return &ChatterRepository{db: db}
}

func (r *ChatterRepository) Insert(ctx context.Context, rec *domain.ChatterRecord) (bool, error) {
	var raw interface{}
	if len(rec.RawPayload) > 0 {
		raw = []byte(rec.RawPayload)
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO chatter_records (id, ticker, origin, origin_local_id, title, summary, url, published_at, sentiment_score, raw_payload, ingested_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (origin, origin_local_id) DO NOTHING
RETURNING id
`, rec.ID, rec.Ticker, rec.Origin, rec.OriginLocalID, nullableString(rec.Title), nullableString(rec.Summary),
		nullableString(rec.URL), rec.PublishedAt, rec.Sentiment, raw, rec.IngestedAt)

	var insertedID string
	err := row.Scan(&insertedID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, domain.WrapError(domain.ErrConnectivity, "insert chatter", err)
}

func (r *ChatterRepository) Recent(ctx context.Context, ticker string, limit int) ([]domain.ChatterRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ticker, origin, origin_local_id, COALESCE(title, ''), COALESCE(summary, ''), COALESCE(url, ''), published_at, sentiment_score, raw_payload, ingested_at
FROM chatter_records
WHERE ticker = $1
ORDER BY published_at DESC
LIMIT $2
`, ticker, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "list chatter", err)
	}
	defer rows.Close()

	out := make([]domain.ChatterRecord, 0, limit)
	for rows.Next() {
		var rec domain.ChatterRecord
		var raw []byte
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &rec.Origin, &rec.OriginLocalID, &rec.Title, &rec.Summary,
			&rec.URL, &rec.PublishedAt, &rec.Sentiment, &raw, &rec.IngestedAt,
		); err != nil {
			return nil, domain.WrapError(domain.ErrConnectivity, "scan chatter", err)
		}
		rec.RawPayload = raw
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "iterate chatter", err)
	}
	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
