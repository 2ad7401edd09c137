package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/identity"
	"github.com/youthdreamers/scholarhub/internal/profile"
	"github.com/youthdreamers/scholarhub/internal/routing"
	"github.com/youthdreamers/scholarhub/internal/session"
)

// AuthService is the auth state store surface the handler drives. Kept small
// so tests can fake it.
type AuthService interface {
	GetState() session.AuthState
	Login(ctx context.Context, email, password string) session.Result
	Register(ctx context.Context, in user.RegisterInput) session.Result
	Logout(ctx context.Context) error
}

type ProfileUpdater interface {
	UpdateByID(ctx context.Context, id string, upd profile.Update) (user.AuthUser, error)
}

// TokenVerifier checks a bearer access token. Nil when the configured
// identity provider issues its own tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*identity.Claims, error)
}

type AuthHandler struct {
	svc      AuthService
	profiles ProfileUpdater
	tokens   TokenVerifier
}

func NewAuthHandler(svc AuthService, profiles ProfileUpdater, tokens TokenVerifier) *AuthHandler {
	return &AuthHandler{svc: svc, profiles: profiles, tokens: tokens}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email       string         `json:"email" binding:"required,email"`
	Password    string         `json:"password" binding:"required,min=6"`
	FirstName   string         `json:"firstName" binding:"required"`
	LastName    string         `json:"lastName" binding:"required"`
	Phone       string         `json:"phone"`
	Role        string         `json:"role" binding:"required,oneof=student admin reviewer donor"`
	ProfileData map[string]any `json:"profileData"`
}

type UpdateProfileRequest struct {
	FirstName   *string        `json:"firstName"`
	LastName    *string        `json:"lastName"`
	Phone       *string        `json:"phone"`
	ProfileData map[string]any `json:"profileData"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res := h.svc.Login(ctx.Request.Context(), req.Email, req.Password)

	if !res.Success {
		respondAuthError(ctx, res.Err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    res.Message,
		"user":       res.User,
		"redirectTo": routing.DashboardPathFor(res.User.Role),
	})
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res := h.svc.Register(ctx.Request.Context(), user.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Role:        user.Role(req.Role),
		ProfileData: req.ProfileData,
	})

	if !res.Success {
		respondAuthError(ctx, res.Err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    res.Message,
		"user":       res.User,
		"redirectTo": routing.DashboardPathFor(res.User.Role),
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	if err := h.svc.Logout(ctx.Request.Context()); err != nil {
		// the process-local state is cleared regardless
		ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout completed locally"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
}

// Session exposes the current auth state read model. A bearer token is
// optional; when the caller presents one and the backend issues verifiable
// tokens, an invalid token is rejected instead of silently ignored.
func (h *AuthHandler) Session(ctx *gin.Context) {
	if h.tokens != nil {
		if auth := ctx.GetHeader("Authorization"); auth != "" {
			raw, ok := strings.CutPrefix(auth, "Bearer ")

			if !ok {
				RespondUnAuthorized(ctx, "invalid_token", "Authorization header must use the Bearer scheme")
				return
			}

			if _, err := h.tokens.VerifyAccessToken(raw); err != nil {
				RespondUnAuthorized(ctx, "invalid_token", "Access token is invalid or expired")
				return
			}
		}
	}

	ctx.JSON(http.StatusOK, h.svc.GetState())
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	state := h.svc.GetState()

	if state.IsLoading {
		RespondError(ctx, http.StatusServiceUnavailable, "auth_state_loading", "Authentication state is still loading. Please retry.", nil)
		return
	}

	if state.User == nil {
		RespondUnAuthorized(ctx, "unauthorized", "Sign in to update your profile")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	updated, err := h.profiles.UpdateByID(ctx.Request.Context(), state.User.ID, profile.Update{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		ProfileData: req.ProfileData,
	})

	if err != nil {
		if err == profile.ErrNotFound {
			RespondNotFound(ctx, "Profile not found")
			return
		}

		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    updated,
	})
}

func respondAuthError(ctx *gin.Context, ae *session.AuthError) {
	if ae == nil {
		RespondInternal(ctx, "Authentication failed")
		return
	}

	RespondError(ctx, statusForKind(ae.Kind), string(ae.Kind), ae.Message, nil)
}

func statusForKind(kind session.ErrorKind) int {
	switch kind {
	case session.KindInvalidCredentials, session.KindEmailUnconfirmed:
		return http.StatusUnauthorized
	case session.KindAlreadyRegistered:
		return http.StatusConflict
	case session.KindWeakPassword, session.KindInvalidEmail:
		return http.StatusBadRequest
	case session.KindProfileNotFound:
		return http.StatusNotFound
	case session.KindNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
