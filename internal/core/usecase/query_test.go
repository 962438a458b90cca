package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
)

type queryRecordsFake struct {
	records []domain.ExtractedRecord
	err     error
}

func (f *queryRecordsFake) Upsert(context.Context, *domain.ExtractedRecord) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *queryRecordsFake) Query(context.Context, string, domain.DocClass, string, string, string) ([]domain.ExtractedRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type queryChatterFake struct {
	records []domain.ChatterRecord
	err     error
}

func (f *queryChatterFake) Insert(context.Context, *domain.ChatterRecord) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *queryChatterFake) Recent(context.Context, string, int) ([]domain.ChatterRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func testThresholds() StalenessThresholds {
	return StalenessThresholds{
		AnnualStaleDays:    400,
		QuarterlyStaleDays: 120,
		ChatterStaleHours:  48,
	}
}

func annualRecords(asOf time.Time) []domain.ExtractedRecord {
	return []domain.ExtractedRecord{{
		ID:       "rec-1",
		Ticker:   "RELIANCE",
		DocClass: domain.DocClassAnnual,
		Period:   "FY2024",
		Table:    "balance_sheet",
		Metric:   "total_assets",
		Value:    decimal.NewFromInt(1000),
		Origin:   "NSE",
		AsOf:     asOf,
	}}
}

func newQueryUseCase(records *queryRecordsFake, chatter *queryChatterFake, audit *auditFake, now time.Time) *VerifiedQueryUseCase {
	uc := NewVerifiedQueryUseCase(records, chatter, audit, testThresholds())
	uc.now = fixedClock(now)
	return uc
}

func annualRequest() ports.QueryRequest {
	return ports.QueryRequest{
		Actor:  "analyst",
		Ticker: "RELIANCE",
		Class:  domain.RecordClassAnnual,
		Table:  "balance_sheet",
	}
}

func TestQueryFreshWithinThreshold(t *testing.T) {
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	records := &queryRecordsFake{records: annualRecords(asOf)}
	audit := &auditFake{}
	uc := newQueryUseCase(records, &queryChatterFake{}, audit, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	result, err := uc.Query(context.Background(), annualRequest())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusFresh {
		t.Fatalf("expected FRESH, got %s", result.Status)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected payload with records")
	}
	if result.Attribution == nil || result.Attribution.Origin != "NSE" || !result.Attribution.AsOf.Equal(asOf) {
		t.Fatalf("expected attribution to NSE as of %s, got %+v", asOf, result.Attribution)
	}
	if result.AgeDays != 0 {
		t.Fatalf("fresh result must not report age, got %d", result.AgeDays)
	}
}

func TestQueryStaleReturnsPayloadWithAge(t *testing.T) {
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	records := &queryRecordsFake{records: annualRecords(asOf)}
	uc := newQueryUseCase(records, &queryChatterFake{}, &auditFake{}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	result, err := uc.Query(context.Background(), annualRequest())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusStale {
		t.Fatalf("expected STALE, got %s", result.Status)
	}
	if len(result.Records) != 1 {
		t.Fatalf("stale payload must be returned, not withheld")
	}
	if result.AgeDays != 427 {
		t.Fatalf("expected age 427 days, got %d", result.AgeDays)
	}
	if result.Attribution == nil {
		t.Fatalf("stale result still carries attribution")
	}
}

func TestQueryAbsentOnEmptyResult(t *testing.T) {
	uc := newQueryUseCase(&queryRecordsFake{}, &queryChatterFake{}, &auditFake{}, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	result, err := uc.Query(context.Background(), annualRequest())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusAbsent {
		t.Fatalf("expected ABSENT, got %s", result.Status)
	}
	if len(result.Records) != 0 || result.Attribution != nil {
		t.Fatalf("absent result must carry no payload, got %+v", result)
	}
}

func TestQueryStorageFailureIsErrorNotAbsent(t *testing.T) {
	records := &queryRecordsFake{err: domain.WrapError(domain.ErrConnectivity, "query records", errors.New("connection refused"))}
	audit := &auditFake{}
	uc := newQueryUseCase(records, &queryChatterFake{}, audit, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	result, err := uc.Query(context.Background(), annualRequest())
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusError {
		t.Fatalf("expected ERROR, got %s", result.Status)
	}
	if result.Reason == "" {
		t.Fatalf("error result must carry a reason")
	}
	if audit.events[0].Status != string(domain.StatusError) {
		t.Fatalf("expected ERROR audited, got %s", audit.events[0].Status)
	}
}

func TestQueryQuarterlyUsesItsOwnThreshold(t *testing.T) {
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	recs := annualRecords(asOf)
	recs[0].DocClass = domain.DocClassQuarterly
	records := &queryRecordsFake{records: recs}
	// 150 days old: stale for quarterly (120d), fresh for annual (400d).
	uc := newQueryUseCase(records, &queryChatterFake{}, &auditFake{}, time.Date(2024, 8, 28, 0, 0, 0, 0, time.UTC))

	req := annualRequest()
	req.Class = domain.RecordClassQuarterly

	result, err := uc.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusStale {
		t.Fatalf("expected STALE under quarterly threshold, got %s", result.Status)
	}
}

func TestQueryChatterStaleAfterWindow(t *testing.T) {
	published := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	chatter := &queryChatterFake{records: []domain.ChatterRecord{{
		ID: "ch-1", Ticker: "RELIANCE", Origin: "NSE", OriginLocalID: "post-1", PublishedAt: published,
	}}}
	uc := newQueryUseCase(&queryRecordsFake{}, chatter, &auditFake{}, time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC))

	req := ports.QueryRequest{Actor: "analyst", Ticker: "RELIANCE", Class: domain.RecordClassChatter}
	result, err := uc.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.Status != domain.StatusStale {
		t.Fatalf("expected STALE after 72h, got %s", result.Status)
	}
	if len(result.Chatter) != 1 {
		t.Fatalf("stale chatter payload must be returned")
	}
}

func TestQueryAuditsExactlyOnce(t *testing.T) {
	records := &queryRecordsFake{records: annualRecords(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))}
	audit := &auditFake{}
	uc := newQueryUseCase(records, &queryChatterFake{}, audit, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	if _, err := uc.Query(context.Background(), annualRequest()); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("expected exactly one audit event, got %d", len(audit.events))
	}
	event := audit.events[0]
	if event.OpKind != domain.OpRead || event.Status != string(domain.StatusFresh) {
		t.Fatalf("unexpected audit event %+v", event)
	}
	if event.EntityKeys["ticker"] != "RELIANCE" {
		t.Fatalf("expected ticker in entity keys, got %+v", event.EntityKeys)
	}
}

func TestQueryAuditFailureAborts(t *testing.T) {
	records := &queryRecordsFake{records: annualRecords(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))}
	audit := &auditFake{err: domain.WrapError(domain.ErrAuditSink, "append audit event", errors.New("sink down"))}
	uc := newQueryUseCase(records, &queryChatterFake{}, audit, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	_, err := uc.Query(context.Background(), annualRequest())
	if !domain.IsKind(err, domain.ErrAuditSink) {
		t.Fatalf("expected audit sink error, got %v", err)
	}
}

func TestQueryRejectsUnknownClass(t *testing.T) {
	audit := &auditFake{}
	uc := newQueryUseCase(&queryRecordsFake{}, &queryChatterFake{}, audit, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	req := annualRequest()
	req.Class = "weekly"

	_, err := uc.Query(context.Background(), req)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(audit.events) != 1 || audit.events[0].Status != "rejected" {
		t.Fatalf("rejected read must still be audited, got %+v", audit.events)
	}
}
