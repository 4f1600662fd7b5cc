package gormstore

import (
	"context"
	"time"

	"github.com/fieldpass/fieldpass/worker"
)

// ---- AlertStore ----

func (r *Repository) CreateAlert(ctx context.Context, a *worker.Alert) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repository) GetAlert(ctx context.Context, id string) (*worker.Alert, error) {
	var a worker.Alert
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &a, nil
}

func (r *Repository) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]worker.Alert, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if onlyOpen {
		q = q.Where("resolved_at IS NULL")
	}
	var alerts []worker.Alert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *Repository) FindAlertByBucket(ctx context.Context, t worker.AlertType, workerID, bucket string) (*worker.Alert, error) {
	var a worker.Alert
	err := r.db.WithContext(ctx).
		Where("type = ? AND worker_id = ? AND bucket = ?", t, workerID, bucket).
		First(&a).Error
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	return &a, nil
}

func (r *Repository) MarkAlertRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&worker.Alert{}).
		Where("id = ?", id).
		Update("read", true).Error
}

// ResolveAlert sets the resolution time and the read flag together:
// resolution implies read.
func (r *Repository) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&worker.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{"read": true, "resolved_at": at}).Error
}
