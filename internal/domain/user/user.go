package user

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Role is the closed set of account roles. Assigned once at registration.
type Role string

const (
	RoleStudent  Role = "student"
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleDonor    Role = "donor"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleReviewer:
		return RoleReviewer, true
	case RoleDonor:
		return RoleDonor, true
	}
	return "", false
}

// RoleOrDefault folds missing/unrecognized roles to student. Only routing
// decisions use this fallback; registration rejects unknown roles outright.
func RoleOrDefault(raw string) Role {
	if r, ok := ParseRole(raw); ok {
		return r
	}
	return RoleStudent
}

// AuthUser is the unified identity+profile projection. ID is shared with the
// identity backend session and never changes once bound.
type AuthUser struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	FirstName     string         `json:"firstName"`
	LastName      string         `json:"lastName"`
	Phone         string         `json:"phone,omitempty"`
	Role          Role           `json:"role"`
	EmailVerified bool           `json:"emailVerified"`
	IsActive      bool           `json:"isActive"`
	ProfileData   map[string]any `json:"profileData,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// DisplayName is first+last name, falling back to the email address. Computed
// on read, never stored.
func (u AuthUser) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return "User"
}

func (u AuthUser) Initials() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)

	switch {
	case first != "" && last != "":
		return initial(first) + initial(last)
	case first != "":
		return initial(first)
	case u.Email != "":
		return initial(u.Email)
	}
	return "U"
}

// initial is the upper-cased first code point, not the first byte, so
// multi-byte names stay valid UTF-8.
func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(s)

	if r == utf8.RuneError {
		return "U"
	}
	return strings.ToUpper(string(r))
}

// NormalizeEmail applies the canonical trim+lowercase form. Every lookup and
// creation goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterInput carries everything captured at registration. Role is recorded
// once here, embedded in identity metadata, and is not self-serve mutable
// afterwards.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Role        Role
	ProfileData map[string]any
}
