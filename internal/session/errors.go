package session

import (
	"errors"
	"strings"

	"github.com/youthdreamers/scholarhub/internal/identity"
)

// ErrorKind is the closed set of user-facing auth error kinds. Raw backend
// error text is classified into a kind exactly once, at this boundary; layers
// above never see backend text.
type ErrorKind string

const (
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindEmailUnconfirmed    ErrorKind = "email_unconfirmed"
	KindAlreadyRegistered   ErrorKind = "already_registered"
	KindWeakPassword        ErrorKind = "weak_password"
	KindInvalidEmail        ErrorKind = "invalid_email"
	KindProfileNotFound     ErrorKind = "profile_not_found"
	KindProfileCreateFailed ErrorKind = "profile_create_failed"
	KindNotConfigured       ErrorKind = "not_configured"
	KindUnknown             ErrorKind = "unknown"
)

type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func newAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// classify maps backend failures into structured kinds with human-readable
// messages.
func classify(err error) *AuthError {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, identity.ErrNotConfigured) {
		return newAuthError(KindNotConfigured, "Authentication is not configured yet. Please contact the administrator.")
	}

	msg := err.Error()

	switch {
	case strings.Contains(msg, "Invalid login credentials"):
		return newAuthError(KindInvalidCredentials, "Invalid email or password.")
	case strings.Contains(msg, "Email not confirmed"):
		return newAuthError(KindEmailUnconfirmed, "Please check your email and click the confirmation link before signing in.")
	case strings.Contains(msg, "already registered"):
		return newAuthError(KindAlreadyRegistered, "An account with this email already exists. Please sign in instead.")
	case strings.Contains(msg, "Password should be at least"):
		return newAuthError(KindWeakPassword, "Password must be at least 6 characters long.")
	case strings.Contains(msg, "Unable to validate email address"):
		return newAuthError(KindInvalidEmail, "Please enter a valid email address.")
	}

	return newAuthError(KindUnknown, msg)
}
