package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

func newAuditRepoWithMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AuditRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAuditRecordAppendsEvent(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("ev-1", "analyst", "read", sqlmock.AnyArg(), "FRESH", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), &domain.AuditEvent{
		ID:         "ev-1",
		Actor:      "analyst",
		OpKind:     domain.OpRead,
		EntityKeys: map[string]string{"ticker": "RELIANCE"},
		Status:     "FRESH",
		At:         time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditRecordFailureIsSinkError(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(errors.New("disk full"))

	err := repo.Record(context.Background(), &domain.AuditEvent{
		ID:     "ev-1",
		Actor:  "worker",
		OpKind: domain.OpWrite,
		Status: "processed",
		At:     time.Now(),
	})
	if !domain.IsKind(err, domain.ErrAuditSink) {
		t.Fatalf("expected audit sink error, got %v", err)
	}
}
