package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
)

const maxDocumentBytes = 64 << 20

// IngestDocumentUseCase validates provenance, archives raw bytes under a
// content-addressed key, registers document identity and hands the id to the
// extraction queue. Identical bytes for the same ticker and class resolve to
// the already-registered document.
type IngestDocumentUseCase struct {
	validator *validate.Validator
	docs      ports.DocumentStore
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	audit     ports.AuditSink

	storageTimeout time.Duration
	now            func() time.Time
}

func NewIngestDocumentUseCase(
	validator *validate.Validator,
	docs ports.DocumentStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	audit ports.AuditSink,
	storageTimeout time.Duration,
) *IngestDocumentUseCase {
	if storageTimeout <= 0 {
		storageTimeout = 10 * time.Second
	}
	return &IngestDocumentUseCase{
		validator:      validator,
		docs:           docs,
		storage:        storage,
		queue:          queue,
		audit:          audit,
		storageTimeout: storageTimeout,
		now:            time.Now,
	}
}

func (uc *IngestDocumentUseCase) Ingest(
	ctx context.Context,
	meta ports.DocumentMeta,
	filename string,
	body io.Reader,
) (*domain.IngestReceipt, error) {
	now := uc.now().UTC()

	asOf, err := uc.validateMeta(meta, now)
	if err != nil {
		if auditErr := uc.recordAttempt(ctx, meta, "", "rejected", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		err := domain.WrapError(domain.ErrValidation, "read document body",
			fmt.Errorf("document exceeds %d bytes", maxDocumentBytes))
		if auditErr := uc.recordAttempt(ctx, meta, "", "rejected", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if len(raw) == 0 {
		err := domain.WrapError(domain.ErrValidation, "read document body", errors.New("document body is empty"))
		if auditErr := uc.recordAttempt(ctx, meta, "", "rejected", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])
	storageKey := fmt.Sprintf("%s/%s/%s%s",
		meta.Ticker, meta.DocClass, contentHash, strings.ToLower(filepath.Ext(filename)))

	if err := uc.archive(ctx, storageKey, raw); err != nil {
		err = fmt.Errorf("archive document: %w", err)
		if auditErr := uc.recordAttempt(ctx, meta, "", "errored", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	doc := &domain.SourceDocument{
		ID:          uuid.NewString(),
		Ticker:      meta.Ticker,
		DocClass:    meta.DocClass,
		Period:      strings.TrimSpace(meta.Period),
		Origin:      meta.Origin,
		ContentHash: contentHash,
		Locator:     storageKey,
		AsOf:        asOf,
		IngestedAt:  now,
	}

	outcome, err := uc.docs.RegisterIfNew(ctx, doc)
	if err != nil {
		err = fmt.Errorf("register document: %w", err)
		if auditErr := uc.recordAttempt(ctx, meta, "", "errored", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	if !outcome.IsNew {
		doc.ID = outcome.ExistingID
		if auditErr := uc.recordAttempt(ctx, meta, doc.ID, "duplicate", "content hash already registered", now); auditErr != nil {
			return nil, auditErr
		}
		return &domain.IngestReceipt{Document: doc, IsNew: false}, nil
	}

	if err := uc.queue.PublishDocumentRegistered(ctx, doc.ID); err != nil {
		err = fmt.Errorf("publish registration event: %w", err)
		if auditErr := uc.recordAttempt(ctx, meta, doc.ID, "errored", err.Error(), now); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}

	if auditErr := uc.recordAttempt(ctx, meta, doc.ID, "registered", "", now); auditErr != nil {
		return nil, auditErr
	}
	return &domain.IngestReceipt{Document: doc, IsNew: true}, nil
}

func (uc *IngestDocumentUseCase) validateMeta(meta ports.DocumentMeta, now time.Time) (time.Time, error) {
	if !meta.DocClass.Valid() {
		return time.Time{}, domain.WrapError(domain.ErrValidation, "validate doc class",
			fmt.Errorf("doc class %q is unknown", meta.DocClass))
	}
	asOf, err := time.Parse("2006-01-02", strings.TrimSpace(meta.AsOf))
	if err != nil {
		return time.Time{}, domain.WrapError(domain.ErrValidation, "validate as-of",
			fmt.Errorf("as-of %q is not an ISO date", meta.AsOf))
	}
	if err := uc.validator.Validate(meta.Origin, meta.Ticker, meta.Period, asOf, now); err != nil {
		return time.Time{}, err
	}
	return asOf, nil
}

func (uc *IngestDocumentUseCase) archive(ctx context.Context, key string, raw []byte) error {
	saveCtx, cancel := context.WithTimeout(ctx, uc.storageTimeout)
	defer cancel()
	return uc.storage.Save(saveCtx, key, bytes.NewReader(raw))
}

// recordAttempt appends the audit event for one ingestion attempt.
// Rejections, duplicates and errored attempts are audited the same as
// successes; a sink failure aborts the attempt.
func (uc *IngestDocumentUseCase) recordAttempt(
	ctx context.Context,
	meta ports.DocumentMeta,
	documentID, status, detail string,
	at time.Time,
) error {
	keys := map[string]string{
		"ticker":    meta.Ticker,
		"doc_class": string(meta.DocClass),
		"period":    meta.Period,
		"origin":    meta.Origin,
	}
	if documentID != "" {
		keys["document_id"] = documentID
	}
	return uc.audit.Record(ctx, &domain.AuditEvent{
		ID:         uuid.NewString(),
		Actor:      meta.Actor,
		OpKind:     domain.OpWrite,
		EntityKeys: keys,
		Status:     status,
		Detail:     detail,
		At:         at,
	})
}
