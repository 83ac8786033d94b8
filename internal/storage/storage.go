package storage

import (
	"errors"
	"time"
)

// ErrCredentialNotFound is returned when no credential has been saved.
var ErrCredentialNotFound = errors.New("credential not found")

// Handshake is the ephemeral record of an in-flight OAuth redirect, scoped
// per provider. It is written once when the start leg succeeds and consumed
// exactly once when the return leg is processed.
type Handshake struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier,omitempty"` // PKCE-capable providers only
	CreatedAt    time.Time `json:"created_at"`
}

// HandshakeStore holds in-flight OAuth handshakes. Put overwrites any
// previous handshake for the same provider; Take removes the record so a
// second Take for the same provider returns nothing.
type HandshakeStore interface {
	Put(provider string, h Handshake)
	Take(provider string) (Handshake, bool)
}

// SavedCookie is one cookie of the persisted ambient credential.
type SavedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// Credential is the long-lived state persisted between runs so that a
// silent refresh can re-establish the session without user interaction.
type Credential struct {
	Cookies []SavedCookie `json:"cookies"`
	SavedAt time.Time     `json:"saved_at"`
}

// CredentialStore persists the ambient credential.
type CredentialStore interface {
	Save(cred Credential) error
	Load() (Credential, error)
	Clear() error
}
