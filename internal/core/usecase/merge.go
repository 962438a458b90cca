package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
	"github.com/kirillkom/verified-ingest/internal/core/ports"
	"github.com/kirillkom/verified-ingest/internal/core/validate"
)

// MergeChatterUseCase folds per-origin feed batches into the chatter store.
// Identity is (origin, origin_local_id): the provider-assigned id when the
// origin supplies one, the item URL otherwise. Content such as the title
// never participates in identity, so an edited repost of the same item is a
// skip, not a new record. Origins are merged in isolation.
type MergeChatterUseCase struct {
	validator *validate.Validator
	chatter   ports.ChatterStore
	audit     ports.AuditSink
	sources   []ports.FeedSource

	now func() time.Time
}

func NewMergeChatterUseCase(
	validator *validate.Validator,
	chatter ports.ChatterStore,
	audit ports.AuditSink,
	sources []ports.FeedSource,
) *MergeChatterUseCase {
	return &MergeChatterUseCase{
		validator: validator,
		chatter:   chatter,
		audit:     audit,
		sources:   sources,
		now:       time.Now,
	}
}

func (uc *MergeChatterUseCase) Merge(ctx context.Context, actor string, batches []domain.OriginBatch) (*domain.MergeSummary, error) {
	summary := &domain.MergeSummary{}

	for _, batch := range batches {
		inserted, skipped, errs := uc.mergeBatch(ctx, batch)
		summary.Inserted += inserted
		summary.Skipped += skipped
		summary.Errors = append(summary.Errors, errs...)

		if auditErr := uc.recordBatch(ctx, actor, batch, inserted, skipped, len(errs)); auditErr != nil {
			return summary, auditErr
		}
	}
	return summary, nil
}

// MergeFromSources fetches every registered feed for ticker and merges the
// results. A fetch failure on one origin is reported per item-error and the
// remaining origins still merge.
func (uc *MergeChatterUseCase) MergeFromSources(ctx context.Context, actor, ticker string) (*domain.MergeSummary, error) {
	var batches []domain.OriginBatch
	var fetchErrors []domain.ItemError

	for _, source := range uc.sources {
		items, err := source.Fetch(ctx, ticker)
		if err != nil {
			fetchErrors = append(fetchErrors, domain.ItemError{
				Origin: source.Origin(),
				Reason: fmt.Sprintf("fetch feed: %v", err),
			})
			continue
		}
		batches = append(batches, domain.OriginBatch{
			Origin: source.Origin(),
			Ticker: ticker,
			Items:  items,
		})
	}

	summary, err := uc.Merge(ctx, actor, batches)
	summary.Errors = append(fetchErrors, summary.Errors...)
	return summary, err
}

func (uc *MergeChatterUseCase) mergeBatch(ctx context.Context, batch domain.OriginBatch) (inserted, skipped int, errs []domain.ItemError) {
	if !uc.validator.OriginAllowed(batch.Origin) {
		return 0, 0, []domain.ItemError{{
			Origin: batch.Origin,
			Reason: "origin is not whitelisted",
		}}
	}
	if strings.TrimSpace(batch.Ticker) == "" {
		return 0, 0, []domain.ItemError{{
			Origin: batch.Origin,
			Reason: "batch ticker is empty",
		}}
	}

	now := uc.now().UTC()
	for _, item := range batch.Items {
		localID := mergeKey(item)
		if localID == "" {
			errs = append(errs, domain.ItemError{
				Origin: batch.Origin,
				Item:   item.Title,
				Reason: "item has neither provider id nor url",
			})
			continue
		}

		publishedAt := item.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = now
		}

		rec := &domain.ChatterRecord{
			ID:            uuid.NewString(),
			Ticker:        batch.Ticker,
			Origin:        batch.Origin,
			OriginLocalID: localID,
			Title:         item.Title,
			Summary:       item.Summary,
			URL:           item.URL,
			PublishedAt:   publishedAt,
			Sentiment:     item.Sentiment,
			RawPayload:    item.Raw,
			IngestedAt:    now,
		}

		ok, err := uc.chatter.Insert(ctx, rec)
		switch {
		case err != nil:
			errs = append(errs, domain.ItemError{
				Origin: batch.Origin,
				Item:   localID,
				Reason: err.Error(),
			})
		case ok:
			inserted++
		default:
			skipped++
		}
	}
	return inserted, skipped, errs
}

// mergeKey derives the origin-local identity: provider id first, url second,
// nothing else.
func mergeKey(item domain.RawFeedItem) string {
	if id := strings.TrimSpace(item.ProviderID); id != "" {
		return id
	}
	return strings.TrimSpace(item.URL)
}

func (uc *MergeChatterUseCase) recordBatch(ctx context.Context, actor string, batch domain.OriginBatch, inserted, skipped, errored int) error {
	return uc.audit.Record(ctx, &domain.AuditEvent{
		ID:     uuid.NewString(),
		Actor:  actor,
		OpKind: domain.OpWrite,
		EntityKeys: map[string]string{
			"origin": batch.Origin,
			"ticker": batch.Ticker,
		},
		Status: "merged",
		Detail: fmt.Sprintf("inserted=%d skipped=%d errored=%d of %d items", inserted, skipped, errored, len(batch.Items)),
		At:     uc.now().UTC(),
	})
}
