// Package domain defines the storage contracts and the error taxonomy
// shared by the enrollment, verification, attendance, and alert layers.
package domain

import "errors"

// Verification and enrollment failures are decisions, not crashes.
// They carry a reason code so the alerting layer and operator logs can
// distinguish cases the external caller is never told apart.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrChallengeInvalid      = errors.New("challenge invalid")
	ErrSignatureInvalid      = errors.New("signature invalid")
	ErrCounterRegression     = errors.New("signature counter regression")
	ErrFaceMismatch          = errors.New("face mismatch")
	ErrDuplicateCredential   = errors.New("duplicate credential")
	ErrNoCredentialsEnrolled = errors.New("no credentials enrolled")
	ErrNoFaceEnrolled        = errors.New("no face enrolled")
	ErrInvalidDescriptor     = errors.New("invalid face descriptor")
	ErrUnknownCredential     = errors.New("unknown credential")
	ErrSubjectNotEnrolled    = errors.New("subject not enrolled")
)

// Reason is the internal reason code attached to a reject decision.
type Reason string

const (
	ReasonChallengeInvalid      Reason = "challenge_invalid"
	ReasonSignatureInvalid      Reason = "signature_invalid"
	ReasonCounterRegression     Reason = "counter_regression"
	ReasonFaceMismatch          Reason = "face_mismatch"
	ReasonUnknownCredential     Reason = "unknown_credential"
	ReasonNoCredentialsEnrolled Reason = "no_credentials_enrolled"
	ReasonNoFaceEnrolled        Reason = "no_face_enrolled"
	ReasonSubjectNotEnrolled    Reason = "subject_not_enrolled"
)

// ReasonFor maps a rejection error to its reason code. Unknown errors
// map to an empty reason, which callers treat as a storage fault rather
// than a decision.
func ReasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrChallengeInvalid):
		return ReasonChallengeInvalid
	case errors.Is(err, ErrSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, ErrCounterRegression):
		return ReasonCounterRegression
	case errors.Is(err, ErrFaceMismatch):
		return ReasonFaceMismatch
	case errors.Is(err, ErrUnknownCredential):
		return ReasonUnknownCredential
	case errors.Is(err, ErrNoCredentialsEnrolled):
		return ReasonNoCredentialsEnrolled
	case errors.Is(err, ErrNoFaceEnrolled):
		return ReasonNoFaceEnrolled
	case errors.Is(err, ErrSubjectNotEnrolled):
		return ReasonSubjectNotEnrolled
	default:
		return ""
	}
}

// IsDecision reports whether the error is a verification reject rather
// than a storage or infrastructure fault. Decisions are returned to the
// boundary as reject responses; anything else escalates as a service
// error.
func IsDecision(err error) bool {
	return ReasonFor(err) != "" ||
		errors.Is(err, ErrDuplicateCredential) ||
		errors.Is(err, ErrInvalidDescriptor) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized)
}
