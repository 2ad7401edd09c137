package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/identity"
	"github.com/youthdreamers/scholarhub/internal/profile"
)

// DemoAccount describes one pre-provisioned demo login.
type DemoAccount struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"-"`
	LastName  string    `json:"-"`
	Phone     string    `json:"-"`
	Role      user.Role `json:"role"`
}

// DemoAccounts is the fixed demo roster, one account per role.
var DemoAccounts = []DemoAccount{
	{Email: "student@demo.com", Password: "student123", FirstName: "Demo", LastName: "Student", Phone: "+91 9876543210", Role: user.RoleStudent},
	{Email: "admin@demo.com", Password: "admin123", FirstName: "Demo", LastName: "Admin", Phone: "+91 9876543211", Role: user.RoleAdmin},
	{Email: "reviewer@demo.com", Password: "reviewer123", FirstName: "Demo", LastName: "Reviewer", Phone: "+91 9876543212", Role: user.RoleReviewer},
	{Email: "donor@demo.com", Password: "donor123", FirstName: "Demo", LastName: "Donor", Phone: "+91 9876543213", Role: user.RoleDonor},
}

// EnsureDemoUsers provisions the demo roster idempotently: identities are
// created if missing, and profile rows are created or re-keyed to the current
// identity id. Re-running against an already seeded database is a no-op.
func EnsureDemoUsers(ctx context.Context, backend *identity.LocalBackend, profiles profile.Store, log *slog.Logger) error {
	for _, acct := range DemoAccounts {
		id, err := backend.EnsureIdentity(ctx, acct.Email, acct.Password, identity.Metadata{
			FirstName: acct.FirstName,
			LastName:  acct.LastName,
			Phone:     acct.Phone,
			Role:      string(acct.Role),
		})

		if err != nil {
			return err
		}

		existing, found, err := profiles.GetByEmail(ctx, acct.Email)

		if err != nil {
			return err
		}

		if found {
			if existing.ID != id {
				// profile left behind by a previous provisioning round
				if _, err := profiles.Rekey(ctx, existing.ID, id); err != nil {
					return err
				}

				log.Info("demo profile re-keyed", "email", acct.Email, "id", id)
			}

			continue
		}

		now := time.Now().UTC()

		_, err = profiles.Insert(ctx, user.AuthUser{
			ID:            id,
			Email:         acct.Email,
			FirstName:     acct.FirstName,
			LastName:      acct.LastName,
			Phone:         acct.Phone,
			Role:          acct.Role,
			EmailVerified: true,
			IsActive:      true,
			ProfileData:   map[string]any{},
			CreatedAt:     now,
			UpdatedAt:     now,
		})

		if err != nil {
			return err
		}

		log.Info("demo account seeded", "email", acct.Email, "role", acct.Role)
	}

	return nil
}
