package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
)

// fail maps an error to the boundary response. Verification decisions
// collapse to a generic category so a caller cannot distinguish a wrong
// credential from a wrong signature; resource errors keep their HTTP
// semantics; anything else is a storage fault and escalates as 503.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]any{
			"status": "not found",
			"code":   http.StatusNotFound,
		})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"status": "unauthorized",
			"code":   http.StatusUnauthorized,
		})
	case errors.Is(err, domain.ErrDuplicateCredential):
		return c.JSON(http.StatusConflict, map[string]any{
			"status": "credential already enrolled",
			"code":   http.StatusConflict,
		})
	case errors.Is(err, domain.ErrInvalidDescriptor), errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status": "invalid input",
			"code":   http.StatusBadRequest,
		})
	case domain.IsDecision(err):
		// Deliberately generic: internal logs keep the specific reason.
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"status":   "verification failed",
			"verified": false,
			"code":     http.StatusUnauthorized,
		})
	default:
		logger.Log.Error("storage layer failure", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "service unavailable",
			"code":   http.StatusServiceUnavailable,
		})
	}
}
