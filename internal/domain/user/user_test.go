package user_test

import (
	"testing"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   user.Role
		wantOK bool
	}{
		{"student", "student", user.RoleStudent, true},
		{"admin", "admin", user.RoleAdmin, true},
		{"reviewer", "reviewer", user.RoleReviewer, true},
		{"donor", "donor", user.RoleDonor, true},
		{"case and whitespace folded", "  Admin ", user.RoleAdmin, true},
		{"unknown rejected", "superuser", "", false},
		{"empty rejected", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := user.ParseRole(tc.raw)

			if ok != tc.wantOK {
				t.Fatalf("ParseRole(%q) ok = %v, want %v", tc.raw, ok, tc.wantOK)
			}

			if got != tc.want {
				t.Fatalf("ParseRole(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestRoleOrDefault(t *testing.T) {
	if got := user.RoleOrDefault("donor"); got != user.RoleDonor {
		t.Fatalf("RoleOrDefault(donor) = %q", got)
	}

	if got := user.RoleOrDefault("nonsense"); got != user.RoleStudent {
		t.Fatalf("RoleOrDefault(nonsense) = %q, want student", got)
	}

	if got := user.RoleOrDefault(""); got != user.RoleStudent {
		t.Fatalf("RoleOrDefault(\"\") = %q, want student", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	got := user.NormalizeEmail("  Admin@Demo.COM ")

	if got != "admin@demo.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}

	// normalization is idempotent
	if again := user.NormalizeEmail(got); again != got {
		t.Fatalf("NormalizeEmail not idempotent: %q -> %q", got, again)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		u    user.AuthUser
		want string
	}{
		{"first and last", user.AuthUser{FirstName: "Demo", LastName: "Student"}, "Demo Student"},
		{"first only", user.AuthUser{FirstName: "Demo"}, "Demo"},
		{"falls back to email", user.AuthUser{Email: "student@demo.com"}, "student@demo.com"},
		{"empty user", user.AuthUser{}, "User"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.u.DisplayName(); got != tc.want {
				t.Fatalf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		u    user.AuthUser
		want string
	}{
		{"both names", user.AuthUser{FirstName: "demo", LastName: "admin"}, "DA"},
		{"first only", user.AuthUser{FirstName: "demo"}, "D"},
		{"email fallback", user.AuthUser{Email: "reviewer@demo.com"}, "R"},
		{"multi-byte names", user.AuthUser{FirstName: "Éla", LastName: "Øre"}, "ÉØ"},
		{"multi-byte first only", user.AuthUser{FirstName: "éla"}, "É"},
		{"empty", user.AuthUser{}, "U"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.u.Initials(); got != tc.want {
				t.Fatalf("Initials() = %q, want %q", got, tc.want)
			}
		})
	}
}
