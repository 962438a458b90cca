package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables. Cross-worker coordination for writes is
// delegated entirely to the unique constraints declared here; no in-process
// locks exist anywhere in the ingestion path.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS source_documents (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	doc_class TEXT NOT NULL,
	period TEXT NOT NULL,
	origin TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	locator TEXT NOT NULL,
	as_of DATE NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT unique_ticker_class_hash UNIQUE (ticker, doc_class, content_hash)
);

CREATE TABLE IF NOT EXISTS document_assets (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES source_documents(id),
	asset_type TEXT NOT NULL,
	locator TEXT NOT NULL,
	interpreted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_records (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	doc_class TEXT NOT NULL,
	period TEXT NOT NULL,
	table_name TEXT NOT NULL,
	metric TEXT NOT NULL,
	value NUMERIC(20,2) NOT NULL,
	origin TEXT NOT NULL,
	as_of DATE NOT NULL,
	document_id TEXT NOT NULL REFERENCES source_documents(id),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT unique_record_key UNIQUE (ticker, period, table_name, metric, as_of)
);

CREATE TABLE IF NOT EXISTS chatter_records (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	origin TEXT NOT NULL,
	origin_local_id TEXT NOT NULL,
	title TEXT,
	summary TEXT,
	url TEXT,
	published_at TIMESTAMPTZ NOT NULL,
	sentiment_score NUMERIC(5,4),
	raw_payload JSONB,
	ingested_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT unique_origin_local_id UNIQUE (origin, origin_local_id)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	actor TEXT NOT NULL,
	op_kind TEXT NOT NULL,
	entity_keys JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	detail TEXT,
	at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_documents_ticker ON source_documents(ticker);
CREATE INDEX IF NOT EXISTS idx_extracted_records_lookup ON extracted_records(ticker, doc_class, table_name);
CREATE INDEX IF NOT EXISTS idx_chatter_ticker_published ON chatter_records(ticker, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_at ON audit_events(at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
