// Package routing gates role-scoped views and computes canonical paths.
// Everything here is a pure function of the auth state; side effects (the
// actual redirects) live with the caller.
package routing

import (
	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/session"
)

const (
	// EntryPath is the public login/register view.
	EntryPath = "/auth"
	// LandingPath is the public landing view shown after sign-out.
	LandingPath = "/"
)

// Decision is the outcome of an access check.
type Decision int

const (
	// DecisionChecking means the auth state is still loading. No redirect
	// decision may be made here; redirecting mid-load causes flicker and
	// races.
	DecisionChecking Decision = iota
	DecisionUnauthenticated
	DecisionWrongRole
	DecisionAuthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionChecking:
		return "CHECKING"
	case DecisionUnauthenticated:
		return "UNAUTHENTICATED"
	case DecisionWrongRole:
		return "WRONG_ROLE"
	case DecisionAuthorized:
		return "AUTHORIZED"
	}
	return "UNKNOWN"
}

// DashboardPathFor is total: every role maps to its fixed dashboard, and a
// missing or unrecognized role falls back to the student dashboard.
func DashboardPathFor(role user.Role) string {
	switch role {
	case user.RoleAdmin:
		return "/admin-dashboard"
	case user.RoleReviewer:
		return "/reviewer-dashboard"
	case user.RoleDonor:
		return "/donor-dashboard"
	case user.RoleStudent:
		return "/student-dashboard"
	default:
		return "/student-dashboard"
	}
}

// Authorize evaluates the current auth state against a route's allow-list.
// Never returns DecisionAuthorized while the state is loading.
func Authorize(state session.AuthState, allowed []user.Role) Decision {
	if state.IsLoading {
		return DecisionChecking
	}

	if state.User == nil || !state.IsAuthenticated {
		return DecisionUnauthenticated
	}

	for _, role := range allowed {
		if state.User.Role == role {
			return DecisionAuthorized
		}
	}

	return DecisionWrongRole
}

// RedirectTarget computes where a denied request should land: the entry view
// when unauthenticated, the user's own dashboard when the role does not
// match. Authorized and checking states have no redirect target.
func RedirectTarget(state session.AuthState, decision Decision) (string, bool) {
	switch decision {
	case DecisionUnauthenticated:
		return EntryPath, true
	case DecisionWrongRole:
		if state.User != nil {
			return DashboardPathFor(state.User.Role), true
		}
		return EntryPath, true
	}

	return "", false
}
