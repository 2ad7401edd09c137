// Package identity defines the contract with the identity backend: the
// external collaborator that verifies credentials, issues sessions and pushes
// session-change events. It owns the answer to "is this credential valid";
// application-level attributes live in the profile store.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by every backend call when the provider
// settings still hold placeholder values. Callers must see this instead of a
// failed network request.
var ErrNotConfigured = errors.New("identity backend is not configured")

// Canonical backend error text. The session layer classifies these strings
// into structured error kinds, so both providers speak the same dialect.
const (
	MsgInvalidCredentials = "Invalid login credentials"
	MsgEmailNotConfirmed  = "Email not confirmed"
	MsgAlreadyRegistered  = "User already registered"
	MsgWeakPassword       = "Password should be at least 6 characters"
	MsgInvalidEmail       = "Unable to validate email address"
)

// Metadata is the attribute bag attached to an identity at sign-up. The role
// tag recorded here is what reconciliation uses to heal a missing profile.
type Metadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"user_type,omitempty"`
}

// Session is the ephemeral token the backend issues. Never persisted by this
// process; only observed.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

func (s *Session) Expired() bool {
	return s != nil && !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Identity is the backend's view of an account.
type Identity struct {
	ID             string
	Email          string
	EmailConfirmed bool
	Metadata       Metadata
}

type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

type Event struct {
	Type    EventType
	Session *Session
}

// Subscription is the cancellable handle returned by OnAuthStateChange.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Backend is the identity collaborator surface consumed by the session layer.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (Session, Identity, error)
	SignUp(ctx context.Context, email, password string, meta Metadata) (Session, Identity, error)
	SignOut(ctx context.Context) error

	// GetSession returns the current session or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// GetUser returns the identity behind the current session or nil when
	// signed out.
	GetUser(ctx context.Context) (*Identity, error)

	// OnAuthStateChange registers a callback for sign-in/sign-out events.
	// Callbacks run on their own goroutine; the session layer serializes
	// resolution work itself.
	OnAuthStateChange(fn func(Event)) Subscription
}
