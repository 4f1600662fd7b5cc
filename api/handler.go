// Package api exposes the scanner/device boundary over HTTP: ceremony
// options, the unified scan endpoint, enrollment, supervisor approval,
// and alert review.
//
// Every ceremony response carries Cache-Control: no-store because each
// one is tied to a single-use challenge or a fresh decision. Reject
// responses never reveal which check failed beyond a generic category;
// the specific reason stays in the logs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/labstack/echo/v4"

	"github.com/fieldpass/fieldpass/attendance"
	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/enroll"
	"github.com/fieldpass/fieldpass/schedule"
	"github.com/fieldpass/fieldpass/verify"
	"github.com/fieldpass/fieldpass/worker"
)

// AlertService is the slice of the alert emitter the API needs.
type AlertService interface {
	List(ctx context.Context, onlyOpen bool, limit int) ([]worker.Alert, error)
	MarkRead(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string) error
}

type Handler struct {
	engine    *verify.Engine
	enrollMgr *enroll.Manager
	processor *attendance.Processor
	alerts    AlertService
	workers   domain.WorkerStore

	// identifyMode allows face submissions without a claimed worker id,
	// matched against every enabled embedding. Deployment configuration.
	identifyMode bool
}

func NewHandler(
	engine *verify.Engine,
	enrollMgr *enroll.Manager,
	processor *attendance.Processor,
	alerts AlertService,
	workers domain.WorkerStore,
	identifyMode bool,
) *Handler {
	return &Handler{
		engine:       engine,
		enrollMgr:    enrollMgr,
		processor:    processor,
		alerts:       alerts,
		workers:      workers,
		identifyMode: identifyMode,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group, auth *SubjectMiddleware) {
	scan := g.Group("/scan", auth.Require)
	scan.POST("/options", h.HandleScanOptions)
	scan.POST("/verify", h.HandleScanVerify)

	enrollG := g.Group("/enroll", auth.Require)
	enrollG.POST("/credential/options", h.HandleEnrollOptions)
	enrollG.POST("/credential", h.HandleEnrollFinish)
	enrollG.POST("/face", h.HandleEnrollFace)

	sup := g.Group("", auth.Require, RequireRole(worker.RoleSupervisor, worker.RoleAdmin))
	sup.DELETE("/enroll/credentials/:workerID", h.HandleResetCredentials)
	sup.POST("/attendance/approve", h.HandleApproveBatch)
	sup.GET("/alerts", h.HandleListAlerts)
	sup.POST("/alerts/:id/read", h.HandleMarkAlertRead)
	sup.POST("/alerts/:id/resolve", h.HandleResolveAlert)
}

// noStore marks a response as tied to a single-use ceremony.
func noStore(c echo.Context) {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
}

// HandleScanOptions returns WebAuthn assertion options for the
// authenticated worker, with a fresh challenge bound to them.
func (h *Handler) HandleScanOptions(c echo.Context) error {
	noStore(c)
	w := CurrentWorker(c)

	options, err := h.engine.BeginAssertion(c.Request().Context(), w.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, options)
}

// HandleScanVerify is the unified scanner endpoint: it accepts either a
// signed assertion or a live face descriptor plus GPS and event kind,
// and on accept records the attendance event.
func (h *Handler) HandleScanVerify(c echo.Context) error {
	noStore(c)
	w := CurrentWorker(c)
	ctx := c.Request().Context()

	var body struct {
		Kind       string          `json:"kind"`
		Latitude   float64         `json:"latitude"`
		Longitude  float64         `json:"longitude"`
		Assertion  json.RawMessage `json:"assertion,omitempty"`
		Descriptor []float64       `json:"descriptor,omitempty"`
		// Claimed may be empty in identify mode.
		Claimed string `json:"worker_id,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	kind := worker.EventKind(body.Kind)
	if kind != worker.EventCheckIn && kind != worker.EventCheckOut {
		return h.badRequest(c, "kind must be check_in or check_out")
	}

	var result *verify.Result
	var err error
	switch {
	case len(body.Assertion) > 0:
		parsed, perr := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(body.Assertion))
		if perr != nil {
			return h.badRequest(c, "malformed assertion")
		}
		result, err = h.engine.FinishAssertion(ctx, w.ID, parsed)
	case len(body.Descriptor) > 0:
		if body.Claimed == "" && h.identifyMode {
			result, err = h.engine.Identify(ctx, body.Descriptor)
		} else {
			claimed := body.Claimed
			if claimed == "" {
				claimed = w.ID
			}
			result, err = h.engine.VerifyFace(ctx, claimed, body.Descriptor)
		}
	default:
		return h.badRequest(c, "assertion or descriptor required")
	}
	if err != nil {
		return h.fail(c, err)
	}

	ev, created, err := h.processor.Process(ctx, result, kind, schedule.Point{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"verified": true,
		"modality": result.Modality,
		"event_id": ev.ID,
		"created":  created,
		"status":   ev.Status,
	})
}

// HandleEnrollOptions starts the credential registration ceremony.
func (h *Handler) HandleEnrollOptions(c echo.Context) error {
	noStore(c)
	w := CurrentWorker(c)

	options, err := h.enrollMgr.BeginCredentialEnrollment(c.Request().Context(), w.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, options)
}

// HandleEnrollFinish completes the registration ceremony.
func (h *Handler) HandleEnrollFinish(c echo.Context) error {
	noStore(c)
	w := CurrentWorker(c)

	parsed, err := protocol.ParseCredentialCreationResponse(c.Request())
	if err != nil {
		return h.badRequest(c, "malformed attestation")
	}

	cred, err := h.enrollMgr.FinishCredentialEnrollment(c.Request().Context(), w.ID, parsed)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"enrolled":      true,
		"credential_id": cred.ID,
	})
}

// HandleEnrollFace enrolls or replaces the worker's face embedding.
func (h *Handler) HandleEnrollFace(c echo.Context) error {
	noStore(c)
	w := CurrentWorker(c)

	var body struct {
		Descriptor []float64 `json:"descriptor"`
	}
	if err := c.Bind(&body); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	if err := h.enrollMgr.EnrollFace(c.Request().Context(), w.ID, body.Descriptor); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"enrolled": true})
}

// HandleResetCredentials revokes a worker's full credential set.
func (h *Handler) HandleResetCredentials(c echo.Context) error {
	workerID := c.Param("workerID")
	if err := h.enrollMgr.ResetCredentials(c.Request().Context(), workerID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"reset": true})
}

// HandleApproveBatch approves the submitted attendance event ids.
// Unknown ids are skipped; the response reports the count approved.
func (h *Handler) HandleApproveBatch(c echo.Context) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	approved, err := h.processor.ApproveBatch(c.Request().Context(), body.IDs)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"approved": approved})
}

func (h *Handler) HandleListAlerts(c echo.Context) error {
	onlyOpen := c.QueryParam("open") == "true"
	alerts, err := h.alerts.List(c.Request().Context(), onlyOpen, 100)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) HandleMarkAlertRead(c echo.Context) error {
	if err := h.alerts.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"read": true})
}

func (h *Handler) HandleResolveAlert(c echo.Context) error {
	if err := h.alerts.Resolve(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"resolved": true})
}

func (h *Handler) badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"status": msg,
		"code":   http.StatusBadRequest,
	})
}
