package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity provider selection: "local" runs the in-process provider,
	// "gotrue" talks to a hosted GoTrue-compatible service.
	IdentityProvider string
	IdentityURL      string
	IdentityKey      string

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	SeedDemoUsers bool

	CORSOrigins []string

	OtelEndpoint string
}

func Load() Config {
	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		IdentityProvider: getEnv("IDENTITY_PROVIDER", "local"),
		IdentityURL:      getEnv("IDENTITY_URL", ""),
		IdentityKey:      getEnv("IDENTITY_KEY", ""),

		JWTSecret:           getEnv("JWT_SECRET", "dev-only-secret"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),

		SeedDemoUsers: getEnvBool("SEED_DEMO_USERS", false),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// IdentityConfigured reports whether the hosted identity provider settings
// look like real values rather than placeholders. When false, every call to
// the hosted backend must short-circuit with a not-configured error instead
// of attempting a doomed network request.
func (c Config) IdentityConfigured() bool {
	if c.IdentityProvider == "local" {
		return true
	}

	url := strings.TrimSpace(c.IdentityURL)
	key := strings.TrimSpace(c.IdentityKey)

	if url == "" || key == "" {
		return false
	}

	if !strings.Contains(url, "://") {
		return false
	}

	for _, v := range []string{url, key} {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "placeholder") || strings.Contains(lower, "your-") {
			return false
		}
	}

	return true
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "scholarhub")
	pass := getEnv("DB_PASSWORD", "scholarhub")
	name := getEnv("DB_NAME", "scholarhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			return fallback
		}

		return b
	}
	return fallback
}
