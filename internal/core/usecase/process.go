package usecase

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
)

// ProcessDocumentUseCase runs deterministic extraction for one registered
// document and persists each row independently. A malformed row rejects that
// row alone; a storage failure on one row errors that row alone. The run
// reports inserted, skipped, rejected and errored counts, never a bare
// success flag.
type ProcessDocumentUseCase struct {
	validator  *validate.Validator
	docs       ports.DocumentStore
	records    ports.RecordStore
	storage    ports.ObjectStorage
	audit      ports.AuditSink
	extractors map[string]ports.TableExtractor

	now func() time.Time
}

// NewProcessDocumentUseCase wires extractors keyed by lowercase file
// extension, e.g. ".xlsx" and ".pdf".
func NewProcessDocumentUseCase(
	validator *validate.Validator,
	docs ports.DocumentStore,
	records ports.RecordStore,
	storage ports.ObjectStorage,
	audit ports.AuditSink,
	extractors map[string]ports.TableExtractor,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		validator:  validator,
		docs:       docs,
		records:    records,
		storage:    storage,
		audit:      audit,
		extractors: extractors,
		now:        time.Now,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) (*domain.ExtractionSummary, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	extraction, err := uc.extract(ctx, doc)
	if err != nil {
		if auditErr := uc.recordRun(ctx, doc, nil, "errored", err.Error()); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	summary := &domain.ExtractionSummary{
		DocumentID: doc.ID,
		Rejected:   len(extraction.Rejections),
		Rejections: extraction.Rejections,
	}

	uc.persistAssets(ctx, doc, extraction.Assets, summary)

	for _, candidate := range extraction.Records {
		if ctx.Err() != nil {
			// Committed rows stay committed. The trail notes the run
			// stopped early.
			detachedCtx := context.WithoutCancel(ctx)
			if auditErr := uc.recordRun(detachedCtx, doc, summary, "cancelled", "run interrupted before all rows were persisted"); auditErr != nil {
				return summary, auditErr
			}
			return summary, ctx.Err()
		}
		uc.persistRow(ctx, doc, candidate, summary)
	}

	if auditErr := uc.recordRun(ctx, doc, summary, "processed", ""); auditErr != nil {
		return nil, auditErr
	}
	return summary, nil
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, doc *domain.SourceDocument) (*domain.Extraction, error) {
	ext := strings.ToLower(filepath.Ext(doc.Locator))
	extractor, ok := uc.extractors[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrValidation, "select extractor",
			fmt.Errorf("no extractor for format %q", ext))
	}

	data, err := uc.storage.Open(ctx, doc.Locator)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConnectivity, "open archived document", err)
	}
	defer data.Close()

	extraction, err := extractor.Extract(ctx, doc, data)
	if err != nil {
		return nil, fmt.Errorf("extract tables: %w", err)
	}
	return extraction, nil
}

// persistRow validates and upserts one candidate. Failures are counted, not
// propagated: one bad row never discards its siblings.
func (uc *ProcessDocumentUseCase) persistRow(ctx context.Context, doc *domain.SourceDocument, candidate domain.CandidateRecord, summary *domain.ExtractionSummary) {
	period := candidate.Period
	if period == "" {
		period = doc.Period
	}
	// The document's provenance passed validation at ingest, so a failure
	// here means the row's own period label is unusable.
	if err := uc.validator.Validate(doc.Origin, doc.Ticker, period, doc.AsOf, uc.now().UTC()); err != nil {
		summary.Rejected++
		summary.Rejections = append(summary.Rejections, domain.Rejection{
			Code:   domain.RejectMissingPeriod,
			Table:  candidate.Table,
			Region: candidate.Metric,
			Detail: err.Error(),
		})
		return
	}

	rec := &domain.ExtractedRecord{
		ID:         uuid.NewString(),
		Ticker:     doc.Ticker,
		DocClass:   doc.DocClass,
		Period:     period,
		Table:      candidate.Table,
		Metric:     candidate.Metric,
		Value:      candidate.Value,
		Origin:     doc.Origin,
		AsOf:       doc.AsOf,
		DocumentID: doc.ID,
	}

	inserted, err := uc.records.Upsert(ctx, rec)
	switch {
	case err != nil:
		summary.Errored++
	case inserted:
		summary.Inserted++
	default:
		summary.Skipped++
	}
}

// persistAssets archives chart and image regions verbatim and links them as
// uninterpreted. An asset failure counts as errored and the run continues.
func (uc *ProcessDocumentUseCase) persistAssets(ctx context.Context, doc *domain.SourceDocument, assets []domain.OpaqueAsset, summary *domain.ExtractionSummary) {
	for _, asset := range assets {
		key := fmt.Sprintf("%s/%s/assets/%s/%s", doc.Ticker, doc.DocClass, doc.ContentHash, asset.Name)
		if err := uc.storage.Save(ctx, key, bytes.NewReader(asset.Bytes)); err != nil {
			summary.Errored++
			continue
		}
		err := uc.docs.AddAsset(ctx, &domain.DocumentAsset{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			AssetType:   asset.Type,
			Locator:     key,
			Interpreted: false,
			CreatedAt:   uc.now().UTC(),
		})
		if err != nil {
			summary.Errored++
		}
	}
}

// recordRun appends the trail event for one extraction run. Every rejection
// reason code rides along in the detail so the trail alone explains what was
// refused and where.
func (uc *ProcessDocumentUseCase) recordRun(ctx context.Context, doc *domain.SourceDocument, summary *domain.ExtractionSummary, status, detail string) error {
	if summary != nil {
		counts := fmt.Sprintf("inserted=%d skipped=%d rejected=%d errored=%d",
			summary.Inserted, summary.Skipped, summary.Rejected, summary.Errored)
		if detail == "" {
			detail = counts
		} else {
			detail = detail + "; " + counts
		}
		if len(summary.Rejections) > 0 {
			detail = detail + "; rejections: " + rejectionDetail(summary.Rejections)
		}
	}
	return uc.audit.Record(ctx, &domain.AuditEvent{
		ID:     uuid.NewString(),
		Actor:  "worker",
		OpKind: domain.OpWrite,
		EntityKeys: map[string]string{
			"document_id": doc.ID,
			"ticker":      doc.Ticker,
			"doc_class":   string(doc.DocClass),
			"period":      doc.Period,
		},
		Status: status,
		Detail: detail,
		At:     uc.now().UTC(),
	})
}

func rejectionDetail(rejections []domain.Rejection) string {
	parts := make([]string, 0, len(rejections))
	for _, rej := range rejections {
		parts = append(parts, fmt.Sprintf("%s %s %s (%s)", rej.Code, rej.Table, rej.Region, rej.Detail))
	}
	return strings.Join(parts, ", ")
}
