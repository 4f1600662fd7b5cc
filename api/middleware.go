package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/worker"
)

const workerContextKey = "fieldpass.worker"

// SubjectMiddleware authenticates the identity provider's bearer token
// and maps its subject claim to a Worker record. The subject id is
// trusted as authenticated, but the worker mapping is always resolved
// here before any biometric operation.
type SubjectMiddleware struct {
	secret  []byte
	workers domain.WorkerStore
}

func NewSubjectMiddleware(secret string, workers domain.WorkerStore) *SubjectMiddleware {
	return &SubjectMiddleware{secret: []byte(secret), workers: workers}
}

func (m *SubjectMiddleware) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return unauthorized(c)
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			return unauthorized(c)
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			return unauthorized(c)
		}

		w, err := m.workers.GetWorkerBySubject(c.Request().Context(), subject)
		if err != nil {
			logger.Log.Error("worker lookup failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "service unavailable",
				"code":   http.StatusServiceUnavailable,
			})
		}
		if w == nil {
			return unauthorized(c)
		}

		c.Set(workerContextKey, w)
		return next(c)
	}
}

// CurrentWorker returns the worker resolved by SubjectMiddleware.
// Handlers behind Require may assume it is present.
func CurrentWorker(c echo.Context) *worker.Worker {
	w, _ := c.Get(workerContextKey).(*worker.Worker)
	return w
}

// RequireRole gates a route on the closed role enum. Unrecognized or
// missing roles are rejected, never defaulted.
func RequireRole(roles ...worker.Role) echo.MiddlewareFunc {
	allowed := make(map[worker.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			w := CurrentWorker(c)
			if w == nil {
				return unauthorized(c)
			}
			role, err := worker.ParseRole(string(w.Role))
			if err != nil {
				return forbidden(c)
			}
			if _, ok := allowed[role]; !ok {
				return forbidden(c)
			}
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]any{
		"status": "unauthorized",
		"code":   http.StatusUnauthorized,
	})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]any{
		"status": "forbidden",
		"code":   http.StatusForbidden,
	})
}
