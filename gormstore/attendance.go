package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/worker"
)

// ---- FaceStore ----

// ReplaceEmbedding runs the delete and the insert in one transaction so
// a crash mid-operation can never leave an enrolled worker with zero
// embeddings.
func (r *Repository) ReplaceEmbedding(ctx context.Context, e *worker.FaceEmbedding) (bool, error) {
	replaced := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&worker.FaceEmbedding{}, "worker_id = ?", e.WorkerID)
		if res.Error != nil {
			return res.Error
		}
		replaced = res.RowsAffected > 0
		return tx.Create(e).Error
	})
	return replaced, err
}

func (r *Repository) GetEmbedding(ctx context.Context, workerID string) (*worker.FaceEmbedding, error) {
	var e worker.FaceEmbedding
	if err := r.db.WithContext(ctx).First(&e, "worker_id = ?", workerID).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &e, nil
}

func (r *Repository) ListEnabledEmbeddings(ctx context.Context) ([]worker.FaceEmbedding, error) {
	var embeddings []worker.FaceEmbedding
	sub := r.db.Model(&worker.Worker{}).Select("id").Where("face_enabled = ?", true)
	if err := r.db.WithContext(ctx).Where("worker_id IN (?)", sub).Find(&embeddings).Error; err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (r *Repository) DeleteEmbedding(ctx context.Context, workerID string) error {
	return r.db.WithContext(ctx).Delete(&worker.FaceEmbedding{}, "worker_id = ?", workerID).Error
}

// ---- AttendanceStore ----

// CreateIfNoOpenCheckIn inserts ev as the worker's open check-in for
// the day. The read is only a fast path; what actually serializes
// concurrent check-ins is the unique index on (worker_id, open_day), so
// a lost insert race surfaces as a duplicate-key error and resolves to
// the winner's row.
func (r *Repository) CreateIfNoOpenCheckIn(ctx context.Context, ev *worker.AttendanceEvent) (*worker.AttendanceEvent, error) {
	open, err := r.GetOpenCheckIn(ctx, ev.WorkerID, ev.Day)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, nil
	}

	ev.OpenDay = &ev.Day
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ev.OpenDay = nil
			open, lookupErr := r.GetOpenCheckIn(ctx, ev.WorkerID, ev.Day)
			if lookupErr == nil && open != nil {
				return open, nil
			}
		}
		return nil, err
	}
	return nil, nil
}

func (r *Repository) CreateEvent(ctx context.Context, ev *worker.AttendanceEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *Repository) GetOpenCheckIn(ctx context.Context, workerID, day string) (*worker.AttendanceEvent, error) {
	var ev worker.AttendanceEvent
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND day = ? AND kind = ? AND closed = ?",
			workerID, day, worker.EventCheckIn, false).
		First(&ev).Error
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	return &ev, nil
}

func (r *Repository) CloseCheckIn(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Model(&worker.AttendanceEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{"closed": true, "open_day": nil}).Error
}

// CloseWithCheckOut records the check-out and closes the matching open
// check-in in one transaction, so a crash between the two writes cannot
// record the check-out while leaving the check-in open. The close is
// conditional on the check-in still being open; losing that race rolls
// the check-out back.
func (r *Repository) CloseWithCheckOut(ctx context.Context, ev *worker.AttendanceEvent, openEventID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		res := tx.Model(&worker.AttendanceEvent{}).
			Where("id = ? AND closed = ?", openEventID, false).
			Updates(map[string]interface{}{"closed": true, "open_day": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) GetEvent(ctx context.Context, id string) (*worker.AttendanceEvent, error) {
	var ev worker.AttendanceEvent
	if err := r.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &ev, nil
}

func (r *Repository) ApproveEvents(ctx context.Context, ids []string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&worker.AttendanceEvent{}).
		Where("id IN ?", ids).
		Update("supervisor_approved", true)
	return res.RowsAffected, res.Error
}
