package httpadapter

import (
	"net/http"

	"github.com/kirillkom/verified-ingest/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConnectivity):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrAuditSink):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
