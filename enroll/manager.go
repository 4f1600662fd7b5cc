// Package enroll manages the biometric enrollment lifecycle: WebAuthn
// credential registration, face embedding enrollment, and revocation.
//
// Face enrollment is replace-only. Credential reset is a full
// revocation of the worker's credential set, not a single-credential
// removal. Both security-sensitive changes notify the alert emitter.
package enroll

import (
	"context"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/alert"
	"github.com/fieldpass/fieldpass/challenge"
	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/passkey"
	"github.com/fieldpass/fieldpass/worker"
)

// MinDescriptorDims is the smallest embedding the platform accepts.
const MinDescriptorDims = 64

// Manager runs enrollment and revocation against the stores.
type Manager struct {
	workers    domain.WorkerStore
	creds      domain.CredentialStore
	faces      domain.FaceStore
	challenges challenge.Store
	rp         *webauthn.WebAuthn
	emitter    *alert.Emitter
	minDims    int
}

func NewManager(
	workers domain.WorkerStore,
	creds domain.CredentialStore,
	faces domain.FaceStore,
	challenges challenge.Store,
	rp *webauthn.WebAuthn,
	emitter *alert.Emitter,
) *Manager {
	return &Manager{
		workers:    workers,
		creds:      creds,
		faces:      faces,
		challenges: challenges,
		rp:         rp,
		emitter:    emitter,
		minDims:    MinDescriptorDims,
	}
}

// Registration challenges live in their own namespace so an enrollment
// ceremony cannot consume a pending verification challenge.
func enrollKey(workerID string) string {
	return "enroll:" + workerID
}

// BeginCredentialEnrollment starts the registration ceremony and
// records its challenge as the worker's outstanding enrollment
// challenge.
func (m *Manager) BeginCredentialEnrollment(ctx context.Context, workerID string) (*protocol.CredentialCreation, error) {
	w, err := m.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrNotFound
	}

	existing, err := m.creds.ListCredentials(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	user := passkey.NewUser(w, existing)
	options, session, err := m.rp.BeginRegistration(user)
	if err != nil {
		return nil, err
	}

	if err := m.challenges.Put(ctx, enrollKey(w.ID), session.Challenge); err != nil {
		return nil, err
	}
	return options, nil
}

// FinishCredentialEnrollment completes the registration ceremony and
// stores the new credential. The authenticator-assigned credential id
// must not already exist for any worker.
func (m *Manager) FinishCredentialEnrollment(ctx context.Context, workerID string, response *protocol.ParsedCredentialCreationData) (*worker.Credential, error) {
	w, err := m.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrNotFound
	}

	presented := response.Response.CollectedClientData.Challenge
	ok, err := m.challenges.Consume(ctx, enrollKey(w.ID), presented)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrChallengeInvalid
	}

	existing, err := m.creds.ListCredentials(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	user := passkey.NewUser(w, existing)
	session := webauthn.SessionData{
		Challenge: presented,
		UserID:    []byte(w.ID),
	}

	libCred, err := m.rp.CreateCredential(user, session, response)
	if err != nil {
		return nil, domain.ErrSignatureInvalid
	}

	if dup, err := m.creds.GetCredentialByID(ctx, libCred.ID); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, domain.ErrDuplicateCredential
	}

	cred, err := passkey.FromLibrary(w.ID, libCred)
	if err != nil {
		return nil, err
	}
	cred.ID = uuid.NewString()
	if err := m.creds.CreateCredential(ctx, cred); err != nil {
		return nil, err
	}

	enabled := true
	if err := m.workers.SetModalityFlags(ctx, w.ID, &enabled, nil); err != nil {
		return nil, err
	}

	logger.Log.Info("credential enrolled",
		zap.String("worker_id", w.ID),
		zap.Int("credential_count", len(existing)+1),
	)
	if len(existing) > 0 && m.emitter != nil {
		if err := m.emitter.Reenrollment(ctx, w, "authenticator credential"); err != nil {
			logger.Log.Warn("failed to emit re-enrollment alert", zap.Error(err))
		}
	}
	return cred, nil
}

// EnrollFace replaces the worker's embedding with the supplied vector
// and enables the face modality. The delete and insert run as one
// atomic unit in the store.
func (m *Manager) EnrollFace(ctx context.Context, workerID string, descriptor []float64) error {
	if len(descriptor) < m.minDims {
		return domain.ErrInvalidDescriptor
	}

	w, err := m.workers.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	if w == nil {
		return domain.ErrNotFound
	}

	vector, err := worker.EncodeDescriptor(descriptor)
	if err != nil {
		return err
	}
	replaced, err := m.faces.ReplaceEmbedding(ctx, &worker.FaceEmbedding{
		ID:        uuid.NewString(),
		WorkerID:  w.ID,
		Vector:    vector,
		Dims:      len(descriptor),
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	enabled := true
	if err := m.workers.SetModalityFlags(ctx, w.ID, nil, &enabled); err != nil {
		return err
	}

	logger.Log.Info("face embedding enrolled",
		zap.String("worker_id", w.ID),
		zap.Int("dims", len(descriptor)),
		zap.Bool("replaced", replaced),
	)
	if replaced && m.emitter != nil {
		if err := m.emitter.Reenrollment(ctx, w, "face embedding"); err != nil {
			logger.Log.Warn("failed to emit re-enrollment alert", zap.Error(err))
		}
	}
	return nil
}

// ResetCredentials revokes every credential for the worker and disables
// the fingerprint modality.
func (m *Manager) ResetCredentials(ctx context.Context, workerID string) error {
	w, err := m.workers.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	if w == nil {
		return domain.ErrNotFound
	}

	if err := m.creds.DeleteCredentials(ctx, w.ID); err != nil {
		return err
	}
	disabled := false
	if err := m.workers.SetModalityFlags(ctx, w.ID, &disabled, nil); err != nil {
		return err
	}

	logger.Log.Warn("credential set revoked", zap.String("worker_id", w.ID))
	if m.emitter != nil {
		if err := m.emitter.CredentialReset(ctx, w); err != nil {
			logger.Log.Warn("failed to emit revocation alert", zap.Error(err))
		}
	}
	return nil
}
