package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// RecordRepository persists extracted records. Each Upsert commits
// independently so one malformed row never rolls back a batch.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Upsert writes one record keyed by (ticker, period, table, metric, as_of).
// Re-ingesting a document with identical extracted values is a no-op update,
// not a duplicate error. The returned flag distinguishes a fresh insert from
// a conflict-update (xmax = 0 holds only for newly inserted tuples).
func (r *RecordRepository) Upsert(ctx context.Context, rec *domain.ExtractedRecord) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO extracted_records (id, ticker, doc_class, period, table_name, metric, value, origin, as_of, document_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
ON CONFLICT (ticker, period, table_name, metric, as_of)
DO UPDATE SET value = EXCLUDED.value, origin = EXCLUDED.origin, document_id = EXCLUDED.document_id, updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`, rec.ID, rec.Ticker, string(rec.DocClass), rec.Period, rec.Table, rec.Metric, rec.Value.StringFixed(2),
		rec.Origin, rec.AsOf, rec.DocumentID, time.Now().UTC())

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return false, domain.WrapError(domain.ErrConnectivity, "upsert record", err)
	}
	return inserted, nil
}

// Query returns matching records. An empty result with a nil error means
// the data is absent; the two outcomes are never conflated.
func (r *RecordRepository) Query(ctx context.Context, ticker string, class domain.DocClass, table, period, metric string) ([]domain.ExtractedRecord, error) {
	query := `
SELECT id, ticker, doc_class, period, table_name, metric, value, origin, as_of, document_id
FROM extracted_records
WHERE ticker = $1 AND doc_class = $2
`
	args := []interface{}{ticker, string(class)}
	if table != "" {
		args = append(args, table)
		query += fmt.Sprintf("AND table_name = $%d\n", len(args))
	}
	if period != "" {
		args = append(args, period)
		query += fmt.Sprintf("AND period = $%d\n", len(args))
	}
	if metric != "" {
		args = append(args, metric)
		query += fmt.Sprintf("AND metric = $%d\n", len(args))
	}
	query += "ORDER BY as_of DESC, table_name ASC, metric ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "query records", err)
	}
	defer rows.Close()

	out := make([]domain.ExtractedRecord, 0)
	for rows.Next() {
		var rec domain.ExtractedRecord
		var class, value string
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &class, &rec.Period, &rec.Table, &rec.Metric,
			&value, &rec.Origin, &rec.AsOf, &rec.DocumentID,
		); err != nil {
			return nil, domain.WrapError(domain.ErrConnectivity, "scan record", err)
		}
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConnectivity, "parse record value", err)
		}
		rec.DocClass = domain.DocClass(class)
		rec.Value = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "iterate records", err)
	}
	return out, nil
}
