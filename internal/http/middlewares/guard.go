package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/routing"
	"github.com/youthdreamers/scholarhub/internal/session"
)

// StateSource is the read-only view of the auth state store. Small interface
// so tests can fake it.
type StateSource interface {
	GetState() session.AuthState
}

// RequireRoles guards a route with an allow-list. Protected content is never
// rendered on a denial: the request is redirected to the entry view or the
// user's own dashboard. While the auth state is still loading no redirect
// decision is made at all; the client is told to retry.
func RequireRoles(states StateSource, allowed ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := states.GetState()

		switch decision := routing.Authorize(state, allowed); decision {
		case routing.DecisionChecking:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{
					"code":    "auth_state_loading",
					"message": "Authentication state is still loading. Please retry.",
				},
			})

		case routing.DecisionUnauthenticated, routing.DecisionWrongRole:
			target, _ := routing.RedirectTarget(state, decision)
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()

		case routing.DecisionAuthorized:
			c.Next()
		}
	}
}
