// Package verify implements the verification engine: the WebAuthn
// assertion ceremony and the face-embedding match that decide whether a
// claimed worker identity is accepted.
//
// Every rejection is a decision with a reason code, never a crash. The
// specific reason stays in the logs and the alerting layer; the HTTP
// boundary collapses it to a generic category.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"go.uber.org/zap"

	"github.com/fieldpass/fieldpass/alert"
	"github.com/fieldpass/fieldpass/challenge"
	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/logger"
	"github.com/fieldpass/fieldpass/passkey"
	"github.com/fieldpass/fieldpass/worker"
)

// Config tunes the decision parameters. Zero values select the
// deployment defaults.
type Config struct {
	// FaceThreshold is the Euclidean distance below which a live
	// descriptor matches the enrolled embedding. Default 0.6.
	FaceThreshold float64

	// MinDescriptorDims rejects degenerate descriptors. Default 64.
	MinDescriptorDims int
}

// Result is a verified-identity event. It is the sole trigger for the
// attendance processor. Distance is transient audit data for the face
// modality and is never persisted with the biometric record.
type Result struct {
	WorkerID   string
	GroupID    string
	Modality   worker.Modality
	VerifiedAt time.Time
	Distance   float64
}

// Engine runs both verification protocols against the stored
// enrollment state.
type Engine struct {
	workers    domain.WorkerStore
	creds      domain.CredentialStore
	faces      domain.FaceStore
	challenges challenge.Store
	rp         *webauthn.WebAuthn
	emitter    *alert.Emitter
	cfg        Config
	now        func() time.Time
}

// NewEngine wires the engine. The relying party comes from
// passkey.New; the emitter receives every failure and success.
func NewEngine(
	workers domain.WorkerStore,
	creds domain.CredentialStore,
	faces domain.FaceStore,
	challenges challenge.Store,
	rp *webauthn.WebAuthn,
	emitter *alert.Emitter,
	cfg Config,
) *Engine {
	if cfg.FaceThreshold <= 0 {
		cfg.FaceThreshold = 0.6
	}
	if cfg.MinDescriptorDims <= 0 {
		cfg.MinDescriptorDims = 64
	}
	return &Engine{
		workers:    workers,
		creds:      creds,
		faces:      faces,
		challenges: challenges,
		rp:         rp,
		emitter:    emitter,
		cfg:        cfg,
		now:        time.Now,
	}
}

// BeginAssertion builds authentication options for the worker,
// restricted to its enrolled credential set, and records the ceremony
// challenge as the worker's single outstanding challenge.
func (e *Engine) BeginAssertion(ctx context.Context, workerID string) (*protocol.CredentialAssertion, error) {
	w, err := e.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrSubjectNotEnrolled
	}

	creds, err := e.creds.ListCredentials(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if !w.FingerprintEnabled || len(creds) == 0 {
		return nil, e.missingModalityError(ctx, w, len(creds) > 0, domain.ErrNoCredentialsEnrolled)
	}

	user := passkey.NewUser(w, creds)
	options, session, err := e.rp.BeginLogin(user)
	if err != nil {
		return nil, err
	}

	// The library-generated challenge becomes the worker's only valid
	// challenge; any prior unconsumed one is overwritten.
	if err := e.challenges.Put(ctx, w.ID, session.Challenge); err != nil {
		return nil, err
	}

	return options, nil
}

// FinishAssertion validates a signed assertion. The ordered checks are
// credential resolution, challenge consumption, signature validation,
// and the strict counter advance; the stored counter is only updated
// after every check passes.
func (e *Engine) FinishAssertion(ctx context.Context, workerID string, response *protocol.ParsedCredentialAssertionData) (*Result, error) {
	w, err := e.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrSubjectNotEnrolled
	}

	cred, err := e.creds.GetCredentialByID(ctx, response.RawID)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.WorkerID != w.ID {
		return nil, e.reject(ctx, w, domain.ErrUnknownCredential)
	}

	presented := response.Response.CollectedClientData.Challenge
	ok, err := e.challenges.Consume(ctx, w.ID, presented)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Covers expired, mismatched, and replayed challenges alike.
		return nil, e.reject(ctx, w, domain.ErrChallengeInvalid)
	}

	creds, err := e.creds.ListCredentials(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	user := passkey.NewUser(w, creds)
	session := webauthn.SessionData{
		Challenge:            presented,
		UserID:               []byte(w.ID),
		AllowedCredentialIDs: allowedIDs(creds),
	}

	validated, err := e.rp.ValidateLogin(user, session, response)
	if err != nil {
		logger.Log.Warn("assertion signature validation failed",
			zap.String("worker_id", w.ID),
			zap.Error(err),
		)
		return nil, e.reject(ctx, w, domain.ErrSignatureInvalid)
	}

	// Clone-detection guard: the presented counter must strictly exceed
	// the stored one. A stalled counter means a possibly cloned
	// authenticator, so this is a hard reject with no state commit.
	if !counterAdvanced(cred.SignCount, validated.Authenticator.SignCount) {
		logger.Log.Error("signature counter regression, possible cloned authenticator",
			zap.String("worker_id", w.ID),
			zap.Uint32("stored", cred.SignCount),
			zap.Uint32("presented", validated.Authenticator.SignCount),
		)
		return nil, e.reject(ctx, w, domain.ErrCounterRegression)
	}

	if err := e.creds.UpdateSignCount(ctx, cred.CredentialID, validated.Authenticator.SignCount); err != nil {
		return nil, err
	}
	if e.emitter != nil {
		if err := e.emitter.RecordSuccess(ctx, w.ID); err != nil {
			logger.Log.Warn("failed to clear failure window", zap.Error(err))
		}
	}

	return &Result{
		WorkerID:   w.ID,
		GroupID:    w.GroupID,
		Modality:   worker.ModalityFingerprint,
		VerifiedAt: e.now(),
	}, nil
}

// counterAdvanced applies the strict monotonic-counter policy. A
// presented count less than or equal to the stored one is rejected even
// when the signature checks out.
func counterAdvanced(stored, presented uint32) bool {
	return presented > stored
}

func allowedIDs(creds []worker.Credential) [][]byte {
	ids := make([][]byte, 0, len(creds))
	for i := range creds {
		ids = append(ids, creds[i].CredentialID)
	}
	return ids
}

// missingModalityError distinguishes "enrolled but wrong modality" from
// "never enrolled at all" so alerting can tell the cases apart.
func (e *Engine) missingModalityError(ctx context.Context, w *worker.Worker, hasThisModality bool, modalityErr error) error {
	if hasThisModality {
		return e.reject(ctx, w, modalityErr)
	}
	other := false
	switch {
	case errors.Is(modalityErr, domain.ErrNoCredentialsEnrolled):
		emb, err := e.faces.GetEmbedding(ctx, w.ID)
		other = err == nil && emb != nil
	case errors.Is(modalityErr, domain.ErrNoFaceEnrolled):
		creds, err := e.creds.ListCredentials(ctx, w.ID)
		other = err == nil && len(creds) > 0
	}
	if !other {
		return e.reject(ctx, w, domain.ErrSubjectNotEnrolled)
	}
	return e.reject(ctx, w, modalityErr)
}

// reject reports the failure to the alert emitter and returns the
// reason as the decision error.
func (e *Engine) reject(ctx context.Context, w *worker.Worker, cause error) error {
	reason := domain.ReasonFor(cause)
	logger.Log.Info("verification rejected",
		zap.String("worker_id", w.ID),
		zap.String("reason", string(reason)),
	)
	if e.emitter != nil {
		if err := e.emitter.RecordFailure(ctx, w, reason); err != nil {
			logger.Log.Warn("failed to record verification failure", zap.Error(err))
		}
	}
	return cause
}
