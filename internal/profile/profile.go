// Package profile is the application-level record store keyed by identity id.
// A valid identity session does not guarantee a profile row exists; lookups
// therefore use maybe-semantics, where zero rows is a valid outcome rather
// than a fault.
package profile

import (
	"context"
	"errors"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

var (
	// ErrEmailTaken signals a unique violation on the email column.
	ErrEmailTaken = errors.New("profile email already in use")
	// ErrNotFound is returned by writes targeting a missing row. Reads use
	// the found flag instead.
	ErrNotFound = errors.New("profile not found")
)

// Update carries the self-serve mutable profile fields. The role column is
// deliberately absent: role is fixed at registration.
type Update struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	ProfileData map[string]any
}

type Store interface {
	// GetByID and GetByEmail report (zero, false, nil) when no row exists.
	GetByID(ctx context.Context, id string) (user.AuthUser, bool, error)
	GetByEmail(ctx context.Context, email string) (user.AuthUser, bool, error)

	Insert(ctx context.Context, u user.AuthUser) (user.AuthUser, error)
	UpdateByID(ctx context.Context, id string, upd Update) (user.AuthUser, error)

	// Rekey moves a row from oldID to newID, repairing profiles whose
	// identity record was re-provisioned under a fresh id.
	Rekey(ctx context.Context, oldID, newID string) (user.AuthUser, error)

	DeleteByID(ctx context.Context, id string) error
}
