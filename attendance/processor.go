// Package attendance turns verified-identity events into attendance
// records and handles the supervisor approval workflow.
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/alert"
	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/schedule"
	"github.com/fieldpass/fieldpass/verify"
	"github.com/fieldpass/fieldpass/worker"
)

// Processor consumes verification accepts and produces attendance
// events. It never runs without a verified identity.
type Processor struct {
	events   domain.AttendanceStore
	workers  domain.WorkerStore
	provider schedule.Provider
	emitter  *alert.Emitter
	now      func() time.Time
}

func NewProcessor(events domain.AttendanceStore, workers domain.WorkerStore, provider schedule.Provider, emitter *alert.Emitter) *Processor {
	return &Processor{
		events:   events,
		workers:  workers,
		provider: provider,
		emitter:  emitter,
		now:      time.Now,
	}
}

// Process records one attendance event for the verified identity.
// created is false when duplicate check-in suppression applied, in
// which case ev is the already-open event; that path is a no-op, not an
// error.
func (p *Processor) Process(ctx context.Context, v *verify.Result, kind worker.EventKind, loc schedule.Point) (ev *worker.AttendanceEvent, created bool, err error) {
	w, err := p.workers.GetWorker(ctx, v.WorkerID)
	if err != nil {
		return nil, false, err
	}
	if w == nil {
		return nil, false, domain.ErrNotFound
	}

	sched, err := p.provider.Schedule(ctx, w.GroupID)
	if err != nil {
		return nil, false, err
	}

	at := p.now()
	ev = &worker.AttendanceEvent{
		ID:         uuid.NewString(),
		WorkerID:   w.ID,
		GroupID:    w.GroupID,
		Kind:       kind,
		Day:        sched.Day(at),
		OccurredAt: at,
		Status:     worker.StatusPresent,
		Modality:   v.Modality,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
	}

	switch kind {
	case worker.EventCheckIn:
		return p.checkIn(ctx, w, sched, ev, loc)
	case worker.EventCheckOut:
		return p.checkOut(ctx, w, ev)
	default:
		return nil, false, domain.ErrInvalidInput
	}
}

func (p *Processor) checkIn(ctx context.Context, w *worker.Worker, sched *schedule.GroupSchedule, ev *worker.AttendanceEvent, loc schedule.Point) (*worker.AttendanceEvent, bool, error) {
	// Deterministic late/present split against the group schedule.
	if ev.OccurredAt.After(sched.LateCutoff(ev.OccurredAt)) {
		ev.Status = worker.StatusLate
	}

	fence, err := p.provider.Fence(ctx, w.GroupID)
	if err != nil {
		return nil, false, err
	}
	outsideFence := fence != nil && !fence.Contains(loc)
	if outsideFence {
		// The event is still recorded; it just requires a supervisor's
		// explicit approval and raises a location alert.
		ev.NeedsApproval = true
	}

	existing, err := p.events.CreateIfNoOpenCheckIn(ctx, ev)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		logger.Log.Info("duplicate check-in suppressed",
			zap.String("worker_id", w.ID),
			zap.String("day", ev.Day),
			zap.String("existing_event", existing.ID),
		)
		return existing, false, nil
	}

	if outsideFence && p.emitter != nil {
		if err := p.emitter.GeofenceViolation(ctx, w, loc.Latitude, loc.Longitude); err != nil {
			logger.Log.Warn("failed to emit geofence alert", zap.Error(err))
		}
	}

	logger.Log.Info("check-in recorded",
		zap.String("worker_id", w.ID),
		zap.String("event_id", ev.ID),
		zap.String("status", string(ev.Status)),
		zap.String("modality", string(ev.Modality)),
	)
	return ev, true, nil
}

func (p *Processor) checkOut(ctx context.Context, w *worker.Worker, ev *worker.AttendanceEvent) (*worker.AttendanceEvent, bool, error) {
	open, err := p.events.GetOpenCheckIn(ctx, w.ID, ev.Day)
	if err != nil {
		return nil, false, err
	}
	if open == nil {
		// Check-out with no matching check-in is recorded but flagged
		// for a supervisor to sort out.
		ev.NeedsApproval = true
		if err := p.events.CreateEvent(ctx, ev); err != nil {
			return nil, false, err
		}
	} else if err := p.events.CloseWithCheckOut(ctx, ev, open.ID); err != nil {
		return nil, false, err
	}

	logger.Log.Info("check-out recorded",
		zap.String("worker_id", w.ID),
		zap.String("event_id", ev.ID),
	)
	return ev, true, nil
}

// ApproveBatch approves every event id that exists and reports the
// count actually approved. Unknown ids are skipped without error.
func (p *Processor) ApproveBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	approved, err := p.events.ApproveEvents(ctx, ids)
	if err != nil {
		return 0, err
	}
	logger.Log.Info("attendance batch approved",
		zap.Int("requested", len(ids)),
		zap.Int64("approved", approved),
	)
	return approved, nil
}
