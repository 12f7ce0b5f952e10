package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrParseFailed):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
