package domain

import (
	"context"
	"time"

	"github.com/fieldpass/fieldpass/worker"
)

// Storage combines every persistence contract the core depends on.
// The gormstore package provides the relational implementation; tests
// use in-package fakes.
type Storage interface {
	WorkerStore
	CredentialStore
	FaceStore
	AttendanceStore
	AlertStore
}

// WorkerStore resolves workers from either their platform id or the
// external subject id the identity provider supplies.
type WorkerStore interface {
	CreateWorker(ctx context.Context, w *worker.Worker) error
	GetWorker(ctx context.Context, id string) (*worker.Worker, error)
	GetWorkerBySubject(ctx context.Context, subjectID string) (*worker.Worker, error)
	UpdateWorker(ctx context.Context, w *worker.Worker) error

	// SetModalityFlags updates the per-worker enable gates as one write.
	// A nil pointer leaves the corresponding flag untouched.
	SetModalityFlags(ctx context.Context, workerID string, fingerprint, face *bool) error
}

// CredentialStore persists WebAuthn credential registrations.
type CredentialStore interface {
	// CreateCredential fails with ErrDuplicateCredential when the
	// authenticator-assigned credential id already exists for any worker.
	CreateCredential(ctx context.Context, c *worker.Credential) error
	GetCredentialByID(ctx context.Context, credentialID []byte) (*worker.Credential, error)
	ListCredentials(ctx context.Context, workerID string) ([]worker.Credential, error)

	// UpdateSignCount persists the post-verification counter. The write
	// must be atomic with respect to concurrent assertions for the same
	// credential.
	UpdateSignCount(ctx context.Context, credentialID []byte, count uint32) error

	// DeleteCredentials removes every credential for the worker.
	DeleteCredentials(ctx context.Context, workerID string) error
}

// FaceStore persists the single enrolled embedding per worker.
type FaceStore interface {
	// ReplaceEmbedding deletes any prior embedding for the worker and
	// inserts the new one as a single atomic unit. There is never an
	// observable zero-embedding window for an enrolled worker.
	ReplaceEmbedding(ctx context.Context, e *worker.FaceEmbedding) (replaced bool, err error)
	GetEmbedding(ctx context.Context, workerID string) (*worker.FaceEmbedding, error)
	ListEnabledEmbeddings(ctx context.Context) ([]worker.FaceEmbedding, error)
	DeleteEmbedding(ctx context.Context, workerID string) error
}

// AttendanceStore persists attendance events. Open-check-in detection
// must serialize per worker/day so two concurrent check-ins cannot both
// succeed.
type AttendanceStore interface {
	// CreateIfNoOpenCheckIn inserts ev unless an open check-in already
	// exists for the same worker/day. It returns the existing open event
	// when suppression applies.
	CreateIfNoOpenCheckIn(ctx context.Context, ev *worker.AttendanceEvent) (existing *worker.AttendanceEvent, err error)
	CreateEvent(ctx context.Context, ev *worker.AttendanceEvent) error
	GetOpenCheckIn(ctx context.Context, workerID, day string) (*worker.AttendanceEvent, error)
	CloseCheckIn(ctx context.Context, eventID string) error

	// CloseWithCheckOut inserts the check-out event and closes the open
	// check-in as one atomic unit. ErrNotFound reports that the check-in
	// was no longer open, in which case nothing is written.
	CloseWithCheckOut(ctx context.Context, ev *worker.AttendanceEvent, openEventID string) error
	GetEvent(ctx context.Context, id string) (*worker.AttendanceEvent, error)

	// ApproveEvents approves every id that exists and reports how many
	// rows were actually approved. Unknown ids are skipped silently.
	ApproveEvents(ctx context.Context, ids []string) (int64, error)
}

// AlertStore persists operational alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *worker.Alert) error
	GetAlert(ctx context.Context, id string) (*worker.Alert, error)
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]worker.Alert, error)

	// FindAlertByBucket locates an existing alert for duplicate
	// suppression, nil when absent.
	FindAlertByBucket(ctx context.Context, t worker.AlertType, workerID, bucket string) (*worker.Alert, error)

	MarkAlertRead(ctx context.Context, id string) error
	ResolveAlert(ctx context.Context, id string, at time.Time) error
}
