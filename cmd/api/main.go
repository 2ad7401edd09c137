package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/youthdreamers/scholarhub/internal/config"
	"github.com/youthdreamers/scholarhub/internal/db"
	httpx "github.com/youthdreamers/scholarhub/internal/http"
	"github.com/youthdreamers/scholarhub/internal/identity"
	"github.com/youthdreamers/scholarhub/internal/observability"
	"github.com/youthdreamers/scholarhub/internal/profile"
	"github.com/youthdreamers/scholarhub/internal/routing"
	"github.com/youthdreamers/scholarhub/internal/session"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "scholarhub-api", cfg.OtelEndpoint)

	if err != nil {
		log.Warn("tracer init failed, continuing without tracing", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	// profile store: postgres, instrumented, optionally wrapped in the
	// redis read-through cache
	var profiles profile.Store = profile.NewInstrumented(profile.NewPostgresStore(pool), prom)

	if cfg.RedisAddr != "" {
		rdb := profile.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

		pingCtx, cancel := config.WithTimeout(2 * time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			log.Warn("redis unreachable, serving profiles uncached", "err", err)
		} else {
			profiles = profile.NewCached(profiles, rdb, 5*time.Minute, log)
		}
	}

	backend, localBackend, tokenManager := buildBackend(cfg, pool, log)

	reconciler := session.NewReconciler(backend, profiles, log, prom)

	store := session.NewStore(reconciler, session.StoreOptions{
		DashboardPath: routing.DashboardPathFor,
		EntryPath:     routing.EntryPath,
		LandingPath:   routing.LandingPath,
	}, log)

	if cfg.SeedDemoUsers && localBackend != nil {
		seedCtx, cancel := config.WithTimeout(15 * time.Second)

		if err := db.EnsureDemoUsers(seedCtx, localBackend, profiles, log); err != nil {
			log.Error("demo seeding failed", "err", err)
		}

		cancel()
	}

	// initial session check, then follow backend auth events
	initCtx, cancel := config.WithTimeout(10 * time.Second)
	store.Init(initCtx)
	cancel()

	store.Attach(backend)
	defer store.Close()

	deps := httpx.RouterDeps{
		Log:      log,
		Cfg:      cfg,
		Store:    store,
		Profiles: profiles,
		Prom:     prom,
		Ping: func() error {
			pingCtx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
	}

	// assign through the concrete type only when present, so the interface
	// field stays nil for providers that issue their own tokens
	if tokenManager != nil {
		deps.Tokens = tokenManager
	}

	router := httpx.NewRouter(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "identity_provider", cfg.IdentityProvider)

		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		shutdownCtx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// buildBackend selects the identity provider. The local provider pointer is
// returned separately because demo seeding needs its EnsureIdentity helper;
// it is nil when the hosted provider is in use.
func buildBackend(cfg config.Config, pool *pgxpool.Pool, log *slog.Logger) (identity.Backend, *identity.LocalBackend, *identity.TokenManager) {
	if cfg.IdentityProvider == "gotrue" {
		return identity.NewGoTrueBackend(identity.GoTrueConfig{
			URL:        cfg.IdentityURL,
			Key:        cfg.IdentityKey,
			Configured: cfg.IdentityConfigured(),
		}, log), nil, nil
	}

	tokens := identity.NewTokenManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)

	local := identity.NewLocalBackend(
		identity.NewIdentitiesRepo(pool),
		identity.NewRefreshTokensRepo(pool),
		tokens,
		log,
	)

	return local, local, tokens
}
