package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/youthdreamers/scholarhub/internal/config"
	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/http/handlers"
	"github.com/youthdreamers/scholarhub/internal/http/middlewares"
	"github.com/youthdreamers/scholarhub/internal/observability"
	"github.com/youthdreamers/scholarhub/internal/profile"
	"github.com/youthdreamers/scholarhub/internal/routing"
	"github.com/youthdreamers/scholarhub/internal/session"
)

type RouterDeps struct {
	Log      *slog.Logger
	Cfg      config.Config
	Store    *session.Store
	Profiles profile.Store
	Tokens   handlers.TokenVerifier
	Prom     *observability.Prom
	Ping     func() error
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("scholarhub-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders())

	if len(deps.Cfg.CORSOrigins) > 0 {
		r.Use(middlewares.CORS(deps.Cfg.CORSOrigins))
	}

	r.Use(middlewares.MaxBodyBytes(1 << 20))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	health := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	authHandler := handlers.NewAuthHandler(deps.Store, deps.Profiles, deps.Tokens)
	demoHandler := handlers.NewDemoHandler(deps.Cfg.Env == "dev")

	// credential endpoints get a tight per-IP window
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	requireJSON := middlewares.RequireJSON()

	auth := r.Group("/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), requireJSON, authHandler.Login)
		auth.POST("/register", authLimiter.Middleware(), requireJSON, authHandler.Register)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/session", authHandler.Session)
		auth.PATCH("/profile", requireJSON, authHandler.UpdateProfile)
		auth.GET("/demo-credentials", demoHandler.Credentials)
	}

	// role-scoped dashboards
	r.GET(routing.DashboardPathFor(user.RoleStudent),
		middlewares.RequireRoles(deps.Store, user.RoleStudent), dashboard("student", deps.Store))
	r.GET(routing.DashboardPathFor(user.RoleAdmin),
		middlewares.RequireRoles(deps.Store, user.RoleAdmin), dashboard("admin", deps.Store))
	r.GET(routing.DashboardPathFor(user.RoleReviewer),
		middlewares.RequireRoles(deps.Store, user.RoleReviewer), dashboard("reviewer", deps.Store))
	r.GET(routing.DashboardPathFor(user.RoleDonor),
		middlewares.RequireRoles(deps.Store, user.RoleDonor), dashboard("donor", deps.Store))

	return r
}

// dashboard returns the role-scoped view payload. The heavy lifting lives in
// the client; this surface exists so the guard has something to protect.
func dashboard(name string, states middlewares.StateSource) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		state := states.GetState()

		var payload gin.H

		if state.User != nil {
			payload = gin.H{
				"dashboard":   name,
				"user":        state.User,
				"displayName": state.User.DisplayName(),
				"initials":    state.User.Initials(),
			}
		} else {
			payload = gin.H{"dashboard": name}
		}

		ctx.JSON(http.StatusOK, payload)
	}
}
