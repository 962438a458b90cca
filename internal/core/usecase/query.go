package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
)

// StalenessThresholds carries the per-class freshness windows. They arrive
// from configuration; nothing here hard-codes a window.
type StalenessThresholds struct {
	AnnualStaleDays    int
	QuarterlyStaleDays int
	ChatterStaleHours  int
}

// VerifiedQueryUseCase is the single read path. Every call resolves to
// exactly one of FRESH, ABSENT, STALE or ERROR and appends exactly one audit
// event. Stale data is returned with its age, never withheld; a storage
// failure is ERROR with a reason and is never conflated with ABSENT.
type VerifiedQueryUseCase struct {
	records    ports.RecordStore
	chatter    ports.ChatterStore
	audit      ports.AuditSink
	thresholds StalenessThresholds

	now func() time.Time
}

func NewVerifiedQueryUseCase(
	records ports.RecordStore,
	chatter ports.ChatterStore,
	audit ports.AuditSink,
	thresholds StalenessThresholds,
) *VerifiedQueryUseCase {
	return &VerifiedQueryUseCase{
		records:    records,
		chatter:    chatter,
		audit:      audit,
		thresholds: thresholds,
		now:        time.Now,
	}
}

func (uc *VerifiedQueryUseCase) Query(ctx context.Context, req ports.QueryRequest) (*domain.AccessResult, error) {
	if err := validateRequest(req); err != nil {
		if auditErr := uc.recordRead(ctx, req, "rejected", err.Error()); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	var result *domain.AccessResult
	if req.Class == domain.RecordClassChatter {
		result = uc.resolveChatter(ctx, req)
	} else {
		result = uc.resolveRecords(ctx, req)
	}

	detail := result.Reason
	if result.Status == domain.StatusStale {
		detail = fmt.Sprintf("age_days=%d", result.AgeDays)
	}
	if auditErr := uc.recordRead(ctx, req, string(result.Status), detail); auditErr != nil {
		return nil, auditErr
	}
	return result, nil
}

func (uc *VerifiedQueryUseCase) resolveRecords(ctx context.Context, req ports.QueryRequest) *domain.AccessResult {
	recs, err := uc.records.Query(ctx, req.Ticker, domain.DocClass(req.Class), req.Table, req.Period, req.Metric)
	if err != nil {
		return &domain.AccessResult{
			Status: domain.StatusError,
			Reason: fmt.Sprintf("record store: %v", err),
		}
	}
	if len(recs) == 0 {
		return &domain.AccessResult{Status: domain.StatusAbsent}
	}

	// Records come back newest first.
	freshest := recs[0]
	attribution := &domain.Attribution{Origin: freshest.Origin, AsOf: freshest.AsOf}
	ageDays := int(uc.now().UTC().Sub(freshest.AsOf).Hours() / 24)

	threshold := uc.thresholds.AnnualStaleDays
	if req.Class == domain.RecordClassQuarterly {
		threshold = uc.thresholds.QuarterlyStaleDays
	}

	if ageDays > threshold {
		return &domain.AccessResult{
			Status:      domain.StatusStale,
			Records:     recs,
			Attribution: attribution,
			AgeDays:     ageDays,
		}
	}
	return &domain.AccessResult{
		Status:      domain.StatusFresh,
		Records:     recs,
		Attribution: attribution,
	}
}

func (uc *VerifiedQueryUseCase) resolveChatter(ctx context.Context, req ports.QueryRequest) *domain.AccessResult {
	items, err := uc.chatter.Recent(ctx, req.Ticker, req.Limit)
	if err != nil {
		return &domain.AccessResult{
			Status: domain.StatusError,
			Reason: fmt.Sprintf("chatter store: %v", err),
		}
	}
	if len(items) == 0 {
		return &domain.AccessResult{Status: domain.StatusAbsent}
	}

	freshest := items[0]
	attribution := &domain.Attribution{Origin: freshest.Origin, AsOf: freshest.PublishedAt}
	age := uc.now().UTC().Sub(freshest.PublishedAt)

	if age > time.Duration(uc.thresholds.ChatterStaleHours)*time.Hour {
		return &domain.AccessResult{
			Status:      domain.StatusStale,
			Chatter:     items,
			Attribution: attribution,
			AgeDays:     int(age.Hours() / 24),
		}
	}
	return &domain.AccessResult{
		Status:      domain.StatusFresh,
		Chatter:     items,
		Attribution: attribution,
	}
}

func validateRequest(req ports.QueryRequest) error {
	if strings.TrimSpace(req.Ticker) == "" {
		return domain.WrapError(domain.ErrValidation, "validate query", errors.New("ticker is empty"))
	}
	if !req.Class.Valid() {
		return domain.WrapError(domain.ErrValidation, "validate query",
			fmt.Errorf("record class %q is unknown", req.Class))
	}
	return nil
}

func (uc *VerifiedQueryUseCase) recordRead(ctx context.Context, req ports.QueryRequest, status, detail string) error {
	keys := map[string]string{
		"ticker": req.Ticker,
		"class":  string(req.Class),
	}
	if req.Table != "" {
		keys["table"] = req.Table
	}
	if req.Period != "" {
		keys["period"] = req.Period
	}
	if req.Metric != "" {
		keys["metric"] = req.Metric
	}
	return uc.audit.Record(ctx, &domain.AuditEvent{
		ID:         uuid.NewString(),
		Actor:      req.Actor,
		OpKind:     domain.OpRead,
		EntityKeys: keys,
		Status:     status,
		Detail:     detail,
		At:         uc.now().UTC(),
	})
}
