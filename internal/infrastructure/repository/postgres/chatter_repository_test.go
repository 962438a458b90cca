package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

func newChatterRepoWithMock(t *testing.T) (*ChatterRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChatterRepository{db: db}, mock, func() { _ = db.Close() }
}

func sampleChatter() *domain.ChatterRecord {
	return &domain.ChatterRecord{
		ID:            "ch-1",
		Ticker:        "RELIANCE",
		Origin:        "NSE",
		OriginLocalID: "post-42",
		Title:         "Results announced",
		PublishedAt:   time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		IngestedAt:    time.Date(2024, 4, 1, 9, 5, 0, 0, time.UTC),
	}
}

func TestChatterInsertReportsNewRow(t *testing.T) {
	repo, mock, done := newChatterRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO chatter_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ch-1"))

	inserted, err := repo.Insert(context.Background(), sampleChatter())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if !inserted {
		t.Fatalf("expected insert")
	}
}

func TestChatterInsertConflictIsSkipNotError(t *testing.T) {
	repo, mock, done := newChatterRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO chatter_records").
		WillReturnError(sql.ErrNoRows)

	inserted, err := repo.Insert(context.Background(), sampleChatter())
	if err != nil {
		t.Fatalf("conflict must not be an error, got %v", err)
	}
	if inserted {
		t.Fatalf("expected conflict skip")
	}
}

func TestChatterInsertWrapsConnectivityFailure(t *testing.T) {
	repo, mock, done := newChatterRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO chatter_records").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Insert(context.Background(), sampleChatter())
	if !domain.IsKind(err, domain.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestChatterRecentDefaultsLimit(t *testing.T) {
	repo, mock, done := newChatterRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, ticker, origin, origin_local_id").
		WithArgs("RELIANCE", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "ticker", "origin", "origin_local_id", "title", "summary", "url",
			"published_at", "sentiment_score", "raw_payload", "ingested_at",
		}))

	out, err := repo.Recent(context.Background(), "RELIANCE", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
