// Package worker defines the core records of the attendance platform:
// workers and their groups, enrolled biometric credentials, attendance
// events, and operational alerts.
//
// A Worker is the 1:1 mapping of an externally authenticated subject id
// to a platform record. A worker owns zero or more Credential rows
// (WebAuthn registrations) and at most one FaceEmbedding; both are
// removed when the worker is removed.
package worker

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JSON is a custom type for handling JSON data in various storages.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// Role is the closed set of platform roles. Unrecognized values are
// rejected at every branch point, never defaulted.
type Role string

const (
	RoleWorker     Role = "worker"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// ParseRole validates a raw role string against the closed enum.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleWorker, RoleSupervisor, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unrecognized role %q", s)
	}
}

// Modality identifies which biometric method produced a verification.
type Modality string

const (
	ModalityFingerprint Modality = "fingerprint"
	ModalityFace        Modality = "face"
)

// Worker maps an external subject id to a platform member.
type Worker struct {
	ID        string `gorm:"primaryKey" json:"id"`
	SubjectID string `gorm:"uniqueIndex" json:"subject_id"`
	GroupID   string `gorm:"index" json:"group_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`

	// Modality gates. The verification engine short-circuits a modality
	// whose flag is off instead of attempting it.
	FingerprintEnabled bool `json:"fingerprint_enabled"`
	FaceEnabled        bool `json:"face_enabled"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

// Group is a site-level grouping of workers sharing a schedule and a
// geofence. Schedule and geofence data live with the external provider;
// GroupID is the lookup key.
type Group struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	SiteName  string    `json:"site_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is one registered WebAuthn public-key authenticator.
// CredentialID is the authenticator-assigned binary id and is unique
// across all workers.
type Credential struct {
	ID           string `gorm:"primaryKey" json:"id"`
	WorkerID     string `gorm:"index" json:"worker_id"`
	CredentialID []byte `gorm:"uniqueIndex" json:"credential_id"`
	PublicKey    []byte `json:"-"`

	AttestationType string `json:"attestation_type"`
	AAGUID          []byte `json:"-"`

	// SignCount is monotonically non-decreasing. A successful assertion
	// must present a strictly greater value or the attempt is rejected.
	SignCount uint32 `json:"sign_count"`

	Transports JSON `gorm:"type:json" json:"transports"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransportHints decodes the declared transport hints.
func (c *Credential) TransportHints() []string {
	var hints []string
	if len(c.Transports) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Transports, &hints); err != nil {
		return nil
	}
	return hints
}

// FaceEmbedding is the single enrolled face vector for a worker.
// Re-enrollment replaces the row, it never appends.
type FaceEmbedding struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	WorkerID  string    `gorm:"uniqueIndex" json:"worker_id"`
	Vector    JSON      `gorm:"type:json" json:"-"`
	Dims      int       `json:"dims"`
	CreatedAt time.Time `json:"created_at"`
}

// Descriptor decodes the stored vector.
func (f *FaceEmbedding) Descriptor() ([]float64, error) {
	var v []float64
	if err := json.Unmarshal(f.Vector, &v); err != nil {
		return nil, fmt.Errorf("face embedding %s: corrupt vector: %w", f.ID, err)
	}
	return v, nil
}

// EncodeDescriptor serializes a live vector for storage.
func EncodeDescriptor(v []float64) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}

// EventKind distinguishes check-in from check-out events.
type EventKind string

const (
	EventCheckIn  EventKind = "check_in"
	EventCheckOut EventKind = "check_out"
)

// AttendanceStatus classifies a check-in against the group schedule.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
)

// AttendanceEvent is created only after a verification accept and is
// never deleted, only superseded by later events of the same worker/day.
type AttendanceEvent struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	WorkerID string    `gorm:"index:idx_attendance_worker_day;uniqueIndex:idx_attendance_open_one" json:"worker_id"`
	GroupID  string    `gorm:"index" json:"group_id"`
	Kind     EventKind `json:"kind"`
	Day      string    `gorm:"index:idx_attendance_worker_day" json:"day"` // YYYY-MM-DD in the group's zone

	// OpenDay mirrors Day while the check-in is open and is cleared on
	// close. The composite unique index with WorkerID turns a second
	// concurrent open check-in into a constraint violation instead of a
	// race; NULL rows (closed or check-out) never collide.
	OpenDay *string `gorm:"uniqueIndex:idx_attendance_open_one" json:"-"`

	OccurredAt time.Time        `json:"occurred_at"`
	Status     AttendanceStatus `json:"status"`
	Modality   Modality         `json:"modality"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Closed marks a check-in that has a matching check-out.
	Closed bool `json:"closed"`

	SupervisorApproved bool      `json:"supervisor_approved"`
	NeedsApproval      bool      `json:"needs_approval"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AlertType is the closed set of operational alert categories.
type AlertType string

const (
	AlertFailureStreak   AlertType = "verification_failure_streak"
	AlertReenrollment    AlertType = "biometric_reenrollment"
	AlertCredentialReset AlertType = "credential_reset"
	AlertGeofence        AlertType = "geofence_violation"
)

// AlertSeverity ranks alerts for supervisor triage.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a persisted operational notice for supervisor review.
// Alerts are never deleted; the only mutations are mark-read and
// resolve (which implies read).
type Alert struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	Type        AlertType     `gorm:"index" json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`

	WorkerID string `gorm:"index" json:"worker_id,omitempty"`
	GroupID  string `gorm:"index" json:"group_id,omitempty"`

	// Bucket deduplicates alerts of the same type+worker within a
	// time window.
	Bucket string `gorm:"index" json:"-"`

	Read       bool       `json:"read"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// Resolved reports whether the alert has been closed out.
func (a *Alert) Resolved() bool { return a.ResolvedAt != nil }
