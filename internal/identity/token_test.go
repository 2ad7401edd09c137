package identity

import (
	"testing"
	"time"
)

func newTestTokens() *TokenManager {
	return NewTokenManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestTokens()

	raw, err := m.GenerateAccessToken("u1", "admin@demo.com", "admin")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)

	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "admin@demo.com" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("token type = %q", claims.TokenType)
	}
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	raw, err := newTestTokens().GenerateAccessToken("u1", "a@demo.com", "student")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewTokenManager("different-secret", 15*time.Minute, time.Hour)

	if _, err := other.VerifyAccessToken(raw); err == nil {
		t.Fatal("token verified under the wrong secret")
	}
}

func TestVerifyAccessTokenRejectsRefreshToken(t *testing.T) {
	m := newTestTokens()

	raw, _, _, err := m.GenerateRefreshToken("u1", "a@demo.com", "student")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
}

func TestVerifyRefreshTokenRejectsAccessToken(t *testing.T) {
	m := newTestTokens()

	raw, err := m.GenerateAccessToken("u1", "a@demo.com", "student")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyRefreshToken(raw); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	m := NewTokenManager("test-secret-key", -time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken("u1", "a@demo.com", "student")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	m := newTestTokens()

	raw, jti, expiresAt, err := m.GenerateRefreshToken("u1", "a@demo.com", "donor")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("empty jti")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt = %v, not in the future", expiresAt)
	}

	claims, err := m.VerifyRefreshToken(raw)

	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != jti {
		t.Fatalf("jti = %q, want %q", claims.JTI, jti)
	}
}

func TestHashRefreshTokenStable(t *testing.T) {
	m := newTestTokens()

	a := m.HashRefreshToken("token-a")
	b := m.HashRefreshToken("token-a")
	c := m.HashRefreshToken("token-b")

	if a != b {
		t.Fatal("hash not deterministic")
	}
	if a == c {
		t.Fatal("distinct tokens share a hash")
	}
	if a == "token-a" {
		t.Fatal("raw token leaked through hashing")
	}
}
