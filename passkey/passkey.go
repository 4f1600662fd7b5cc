// Package passkey adapts workers and their stored credentials to the
// go-webauthn library and builds the relying-party instance from
// configuration.
package passkey

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/fieldpass/fieldpass/worker"
)

// Config holds the relying-party parameters used for both ceremony
// directions. Nothing here is hardcoded into verification logic.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string

	// CeremonyTimeout bounds a pending ceremony; it matches the
	// challenge TTL so an abandoned attempt is rejected, never left
	// pending.
	CeremonyTimeout time.Duration
}

// New builds the relying-party instance.
func New(cfg Config) (*webauthn.WebAuthn, error) {
	wconfig := &webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	}
	if cfg.CeremonyTimeout > 0 {
		t := webauthn.TimeoutConfig{
			Enforce:    true,
			Timeout:    cfg.CeremonyTimeout,
			TimeoutUVD: cfg.CeremonyTimeout,
		}
		wconfig.Timeouts = webauthn.TimeoutsConfig{Login: t, Registration: t}
	}
	wa, err := webauthn.New(wconfig)
	if err != nil {
		return nil, fmt.Errorf("passkey: failed to create relying party: %w", err)
	}
	return wa, nil
}

// User presents a worker and its enrolled credential set to the
// library. Options built from it are restricted to that set.
type User struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func NewUser(w *worker.Worker, creds []worker.Credential) *User {
	u := &User{
		id:          []byte(w.ID),
		name:        w.SubjectID,
		displayName: w.Name,
	}
	for i := range creds {
		u.credentials = append(u.credentials, ToLibrary(&creds[i]))
	}
	return u
}

func (u *User) WebAuthnID() []byte                         { return u.id }
func (u *User) WebAuthnName() string                       { return u.name }
func (u *User) WebAuthnDisplayName() string                { return u.displayName }
func (u *User) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
func (u *User) WebAuthnIcon() string                       { return "" }

// ToLibrary converts a stored credential row to the library's shape.
func ToLibrary(c *worker.Credential) webauthn.Credential {
	var transports []protocol.AuthenticatorTransport
	for _, t := range c.TransportHints() {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// FromLibrary converts a freshly created library credential into a row
// owned by the worker.
func FromLibrary(workerID string, cred *webauthn.Credential) (*worker.Credential, error) {
	var hints []string
	for _, t := range cred.Transport {
		hints = append(hints, string(t))
	}
	transports, err := json.Marshal(hints)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &worker.Credential{
		WorkerID:        workerID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		Transports:      worker.JSON(transports),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
