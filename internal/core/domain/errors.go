package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before persistence: disallowed
	// origin, empty ticker, ambiguous period, missing or future as-of.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate marks an expected content-hash or merge-key collision.
	// It is counted, never propagated as failure.
	ErrDuplicate = errors.New("duplicate detected")

	ErrNotFound = errors.New("not found")

	// ErrConnectivity marks a transient storage or network failure. It
	// surfaces to readers as status ERROR, never as ABSENT.
	ErrConnectivity = errors.New("connectivity failure")

	// ErrAuditSink aborts the originating operation: unaudited state
	// mutation is disallowed.
	ErrAuditSink = errors.New("audit sink failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
