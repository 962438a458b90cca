package domain

import "time"

type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
)

// AuditEvent is one append-only trail entry. An event is written for every
// access-layer call and every ingestion attempt, including rejections and
// duplicates; events are never mutated or deleted.
type AuditEvent struct {
	ID         string            `json:"id"`
	Actor      string            `json:"actor"`
	OpKind     OpKind            `json:"op_kind"`
	EntityKeys map[string]string `json:"entity_keys"`
	Status     string            `json:"status"`
	Detail     string            `json:"detail,omitempty"`
	At         time.Time         `json:"at"`
}
