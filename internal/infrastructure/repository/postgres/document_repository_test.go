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

func newDocumentRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func sampleDocument() *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:          "doc-1",
		Ticker:      "RELIANCE",
		DocClass:    domain.DocClassAnnual,
		Period:      "FY2024",
		Origin:      "NSE",
		ContentHash: "c0ffee",
		Locator:     "RELIANCE/annual/c0ffee.xlsx",
		AsOf:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		IngestedAt:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegisterIfNewInsertsFirstWriter(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	doc := sampleDocument()
	mock.ExpectQuery("INSERT INTO source_documents").
		WithArgs(doc.ID, doc.Ticker, "annual", doc.Period, doc.Origin, doc.ContentHash, doc.Locator, doc.AsOf, doc.IngestedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(doc.ID))

	outcome, err := repo.RegisterIfNew(context.Background(), doc)
	if err != nil {
		t.Fatalf("RegisterIfNew() error = %v", err)
	}
	if !outcome.IsNew {
		t.Fatalf("expected first writer to observe IsNew")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterIfNewReportsDuplicateWithExistingID(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	doc := sampleDocument()
	mock.ExpectQuery("INSERT INTO source_documents").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM source_documents").
		WithArgs(doc.Ticker, "annual", doc.ContentHash).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-existing"))

	outcome, err := repo.RegisterIfNew(context.Background(), doc)
	if err != nil {
		t.Fatalf("duplicate must not be an error, got %v", err)
	}
	if outcome.IsNew {
		t.Fatalf("expected duplicate outcome")
	}
	if outcome.ExistingID != "doc-existing" {
		t.Fatalf("expected existing id doc-existing, got %s", outcome.ExistingID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterIfNewWrapsConnectivityFailure(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO source_documents").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.RegisterIfNew(context.Background(), sampleDocument())
	if !domain.IsKind(err, domain.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, ticker, doc_class").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddAssetInsertsUninterpretedRow(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO document_assets").
		WithArgs("asset-1", "doc-1", "image", "RELIANCE/annual/assets/c0ffee/chart.png", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddAsset(context.Background(), &domain.DocumentAsset{
		ID:          "asset-1",
		DocumentID:  "doc-1",
		AssetType:   domain.AssetTypeImage,
		Locator:     "RELIANCE/annual/assets/c0ffee/chart.png",
		Interpreted: false,
		CreatedAt:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddAsset() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
