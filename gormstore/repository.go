// Package gormstore is the GORM-backed implementation of the domain
// storage contracts. SQLite, Postgres, and MySQL dialectors register
// behind the driver registry.
//
// Lookup methods return a nil record with a nil error when the row is
// absent; only infrastructure faults surface as errors.
package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/worker"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate(models ...any) error {
	baseModels := []any{
		&worker.Worker{},
		&worker.Group{},
		&worker.Credential{},
		&worker.FaceEmbedding{},
		&worker.AttendanceEvent{},
		&worker.Alert{},
	}
	return r.db.AutoMigrate(append(baseModels, models...)...)
}

// ---- WorkerStore ----

func (r *Repository) CreateWorker(ctx context.Context, w *worker.Worker) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *Repository) GetWorker(ctx context.Context, id string) (*worker.Worker, error) {
	var w worker.Worker
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &w, nil
}

func (r *Repository) GetWorkerBySubject(ctx context.Context, subjectID string) (*worker.Worker, error) {
	var w worker.Worker
	if err := r.db.WithContext(ctx).First(&w, "subject_id = ?", subjectID).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &w, nil
}

func (r *Repository) UpdateWorker(ctx context.Context, w *worker.Worker) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *Repository) SetModalityFlags(ctx context.Context, workerID string, fingerprint, face *bool) error {
	updates := map[string]any{}
	if fingerprint != nil {
		updates["fingerprint_enabled"] = *fingerprint
	}
	if face != nil {
		updates["face_enabled"] = *face
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&worker.Worker{}).Where("id = ?", workerID).Updates(updates).Error
}

// ---- CredentialStore ----

func (r *Repository) CreateCredential(ctx context.Context, c *worker.Credential) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateCredential
	}
	return err
}

func (r *Repository) GetCredentialByID(ctx context.Context, credentialID []byte) (*worker.Credential, error) {
	var c worker.Credential
	if err := r.db.WithContext(ctx).First(&c, "credential_id = ?", credentialID).Error; err != nil {
		return nil, ignoreNotFound(err)
	}
	return &c, nil
}

func (r *Repository) ListCredentials(ctx context.Context, workerID string) ([]worker.Credential, error) {
	var creds []worker.Credential
	if err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).Order("created_at").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *Repository) UpdateSignCount(ctx context.Context, credentialID []byte, count uint32) error {
	return r.db.WithContext(ctx).
		Model(&worker.Credential{}).
		Where("credential_id = ?", credentialID).
		Update("sign_count", count).Error
}

func (r *Repository) DeleteCredentials(ctx context.Context, workerID string) error {
	return r.db.WithContext(ctx).Delete(&worker.Credential{}, "worker_id = ?", workerID).Error
}

func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
