// Package alert derives operational alerts from verification and
// attendance activity and manages their read/resolve lifecycle.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/worker"
)

// Config tunes when a failure streak becomes an alert.
type Config struct {
	// FailureThreshold is the count within FailureWindow that raises a
	// streak alert.
	FailureThreshold int
	FailureWindow    time.Duration
}

// Emitter creates alerts and applies their two terminal mutations.
type Emitter struct {
	alerts   domain.AlertStore
	failures FailureStore
	cfg      Config
	now      func() time.Time
}

// NewEmitter wires the emitter. Threshold defaults to 5 failures in 15
// minutes when the config is zero.
func NewEmitter(alerts domain.AlertStore, failures FailureStore, cfg Config) *Emitter {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 15 * time.Minute
	}
	return &Emitter{alerts: alerts, failures: failures, cfg: cfg, now: time.Now}
}

// bucket collapses repeated alerts of one type for one worker into a
// single row per window.
func (e *Emitter) bucket(at time.Time) string {
	return at.Truncate(e.cfg.FailureWindow).UTC().Format(time.RFC3339)
}

// create persists a, suppressing duplicates of the same type+worker
// within the current window. A non-empty scope joins the dedup key, so
// alerts about different artifacts never suppress each other.
func (e *Emitter) create(ctx context.Context, a *worker.Alert, scope string) error {
	a.Bucket = e.bucket(e.now())
	if scope != "" {
		a.Bucket = scope + "@" + a.Bucket
	}
	existing, err := e.alerts.FindAlertByBucket(ctx, a.Type, a.WorkerID, a.Bucket)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = e.now()
	if err := e.alerts.CreateAlert(ctx, a); err != nil {
		return err
	}
	logger.Log.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("worker_id", a.WorkerID),
		zap.String("severity", string(a.Severity)),
	)
	return nil
}

// RecordFailure counts a verification failure and raises a streak alert
// when the threshold is crossed within the window.
func (e *Emitter) RecordFailure(ctx context.Context, w *worker.Worker, reason domain.Reason) error {
	count, err := e.failures.RecordFailure(ctx, w.ID, e.cfg.FailureWindow)
	if err != nil {
		return err
	}
	if count < e.cfg.FailureThreshold {
		return nil
	}
	return e.create(ctx, &worker.Alert{
		Type:     worker.AlertFailureStreak,
		Severity: worker.SeverityCritical,
		Title:    "Repeated verification failures",
		Description: fmt.Sprintf("%d failed verification attempts for %s within %s (last reason: %s)",
			count, w.Name, e.cfg.FailureWindow, reason),
		WorkerID: w.ID,
		GroupID:  w.GroupID,
	}, "")
}

// RecordSuccess clears the worker's failure window.
func (e *Emitter) RecordSuccess(ctx context.Context, workerID string) error {
	return e.failures.ClearFailures(ctx, workerID)
}

// Reenrollment raises a security-change alert after a biometric
// re-enrollment. The changed artifact scopes the dedup key: a face
// replacement and a credential replacement in the same window are
// separate alerts.
func (e *Emitter) Reenrollment(ctx context.Context, w *worker.Worker, what string) error {
	return e.create(ctx, &worker.Alert{
		Type:        worker.AlertReenrollment,
		Severity:    worker.SeverityWarning,
		Title:       "Biometric enrollment changed",
		Description: fmt.Sprintf("%s for %s was %s", what, w.Name, "replaced"),
		WorkerID:    w.ID,
		GroupID:     w.GroupID,
	}, what)
}

// CredentialReset raises an alert for a full credential revocation. It
// carries its own type, so it never dedups against a re-enrollment in
// the same window.
func (e *Emitter) CredentialReset(ctx context.Context, w *worker.Worker) error {
	return e.create(ctx, &worker.Alert{
		Type:        worker.AlertCredentialReset,
		Severity:    worker.SeverityWarning,
		Title:       "Credential set revoked",
		Description: fmt.Sprintf("every registered authenticator for %s was revoked", w.Name),
		WorkerID:    w.ID,
		GroupID:     w.GroupID,
	}, "")
}

// GeofenceViolation raises a location-anomaly alert for a check-in
// outside the group's expected fence.
func (e *Emitter) GeofenceViolation(ctx context.Context, w *worker.Worker, lat, lng float64) error {
	return e.create(ctx, &worker.Alert{
		Type:        worker.AlertGeofence,
		Severity:    worker.SeverityWarning,
		Title:       "Check-in outside geofence",
		Description: fmt.Sprintf("%s checked in at (%.5f, %.5f), outside the expected area", w.Name, lat, lng),
		WorkerID:    w.ID,
		GroupID:     w.GroupID,
	}, "")
}

// MarkRead sets the read flag. Marking an already-read alert is a
// no-op; an unknown id fails ErrNotFound.
func (e *Emitter) MarkRead(ctx context.Context, id string) error {
	a, err := e.alerts.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return domain.ErrNotFound
	}
	if a.Read {
		return nil
	}
	return e.alerts.MarkAlertRead(ctx, id)
}

// Resolve sets the resolution time and implies read. Resolving an
// already-resolved alert is a no-op; an unknown id fails ErrNotFound.
func (e *Emitter) Resolve(ctx context.Context, id string) error {
	a, err := e.alerts.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return domain.ErrNotFound
	}
	if a.Resolved() {
		return nil
	}
	return e.alerts.ResolveAlert(ctx, id, e.now())
}

// List returns alerts for supervisor review, open ones first when
// onlyOpen is set.
func (e *Emitter) List(ctx context.Context, onlyOpen bool, limit int) ([]worker.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.alerts.ListAlerts(ctx, onlyOpen, limit)
}
