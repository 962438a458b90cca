package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

// AuditRepository appends trail events. There is deliberately no update or
// delete path. A failed append wraps ErrAuditSink so the originating
// operation aborts instead of proceeding unaudited.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, event *domain.AuditEvent) error {
	keys, err := json.Marshal(event.EntityKeys)
	if err != nil {
		return domain.WrapError(domain.ErrAuditSink, "marshal entity keys", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, actor, op_kind, entity_keys, status, detail, at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, event.ID, event.Actor, string(event.OpKind), keys, event.Status, event.Detail, event.At)
	if err != nil {
		return domain.WrapError(domain.ErrAuditSink, "append audit event", err)
	}
	return nil
}
