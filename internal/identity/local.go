package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

// IdentityRow is a stored credential record for the local provider.
type IdentityRow struct {
	ID             string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	Metadata       Metadata
	CreatedAt      time.Time
}

type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (IdentityRow, bool, error)
	GetByID(ctx context.Context, id string) (IdentityRow, bool, error)
	Create(ctx context.Context, row IdentityRow) error
}

type RefreshTokenRow struct {
	ID         string // jti
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshInvalid  = errors.New("refresh token revoked or mismatched")
	ErrRefreshExpired  = errors.New("refresh token expired")
)

type RefreshStore interface {
	Create(ctx context.Context, row RefreshTokenRow) error
	// Rotate atomically revokes oldJTI and records newRow, verifying the
	// presented token hash against the stored one.
	Rotate(ctx context.Context, oldJTI, presentedHash string, newRow RefreshTokenRow) error
	Revoke(ctx context.Context, jti string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// LocalBackend is the in-process identity provider used for dev, demo and
// self-hosted installs. Credentials live in postgres; the current session is
// held in memory, one active session per process.
type LocalBackend struct {
	ids     IdentityStore
	refresh RefreshStore
	tokens  *TokenManager
	log     *slog.Logger

	mu         sync.Mutex
	current    *Session
	currentJTI string
	refreshRaw string

	events *broadcaster
}

func NewLocalBackend(ids IdentityStore, refresh RefreshStore, tokens *TokenManager, log *slog.Logger) *LocalBackend {
	return &LocalBackend{
		ids:     ids,
		refresh: refresh,
		tokens:  tokens,
		log:     log,
		events:  newBroadcaster(),
	}
}

func (b *LocalBackend) SignUp(ctx context.Context, email, password string, meta Metadata) (Session, Identity, error) {
	email = user.NormalizeEmail(email)

	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return Session{}, Identity{}, errors.New(MsgInvalidEmail)
	}

	if len(password) < 6 {
		return Session{}, Identity{}, errors.New(MsgWeakPassword)
	}

	_, exists, err := b.ids.GetByEmail(ctx, email)

	if err != nil {
		return Session{}, Identity{}, err
	}

	if exists {
		return Session{}, Identity{}, errors.New(MsgAlreadyRegistered)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return Session{}, Identity{}, err
	}

	row := IdentityRow{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: true,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}

	if err := b.ids.Create(ctx, row); err != nil {
		return Session{}, Identity{}, err
	}

	return b.establishSession(ctx, row)
}

func (b *LocalBackend) SignInWithPassword(ctx context.Context, email, password string) (Session, Identity, error) {
	email = user.NormalizeEmail(email)

	row, found, err := b.ids.GetByEmail(ctx, email)

	if err != nil {
		return Session{}, Identity{}, err
	}

	if !found {
		return Session{}, Identity{}, errors.New(MsgInvalidCredentials)
	}

	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return Session{}, Identity{}, errors.New(MsgInvalidCredentials)
	}

	if !row.EmailConfirmed {
		return Session{}, Identity{}, errors.New(MsgEmailNotConfirmed)
	}

	return b.establishSession(ctx, row)
}

func (b *LocalBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	jti := b.currentJTI
	b.current = nil
	b.currentJTI = ""
	b.refreshRaw = ""
	b.mu.Unlock()

	if jti != "" {
		if err := b.refresh.Revoke(ctx, jti); err != nil {
			b.log.Warn("refresh revoke on sign-out failed", "err", err)
		}
	}

	b.emit(Event{Type: EventSignedOut})
	return nil
}

// GetSession returns the current session, transparently rotating the refresh
// token when the access token has expired.
func (b *LocalBackend) GetSession(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, nil
	}

	if !b.current.Expired() {
		s := *b.current
		return &s, nil
	}

	if err := b.rotateLocked(ctx); err != nil {
		b.log.Debug("session refresh failed, signing out", "err", err)

		// A revoked or mismatched token during rotation means the presented
		// token was already used or tampered with. Treat the whole family as
		// compromised and revoke every outstanding token for the user.
		if errors.Is(err, ErrRefreshInvalid) {
			if rerr := b.refresh.RevokeAllForUser(ctx, b.current.UserID); rerr != nil {
				b.log.Warn("revoking token family failed", "user_id", b.current.UserID, "err", rerr)
			}
		}

		b.current = nil
		b.currentJTI = ""
		b.refreshRaw = ""
		return nil, nil
	}

	s := *b.current
	return &s, nil
}

func (b *LocalBackend) GetUser(ctx context.Context) (*Identity, error) {
	s, err := b.GetSession(ctx)

	if err != nil || s == nil {
		return nil, err
	}

	row, found, err := b.ids.GetByID(ctx, s.UserID)

	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	id := rowIdentity(row)
	return &id, nil
}

func (b *LocalBackend) OnAuthStateChange(fn func(Event)) Subscription {
	return b.events.subscribe(fn)
}

// EnsureIdentity creates a credential record if one does not exist for the
// email, returning the identity id either way. Used by demo seeding; does not
// establish a session or emit events.
func (b *LocalBackend) EnsureIdentity(ctx context.Context, email, password string, meta Metadata) (string, error) {
	email = user.NormalizeEmail(email)

	row, found, err := b.ids.GetByEmail(ctx, email)

	if err != nil {
		return "", err
	}

	if found {
		return row.ID, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	row = IdentityRow{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: true,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}

	if err := b.ids.Create(ctx, row); err != nil {
		return "", err
	}

	return row.ID, nil
}

func (b *LocalBackend) establishSession(ctx context.Context, row IdentityRow) (Session, Identity, error) {
	access, err := b.tokens.GenerateAccessToken(row.ID, row.Email, row.Metadata.Role)

	if err != nil {
		return Session{}, Identity{}, err
	}

	rawRefresh, jti, expiresAt, err := b.tokens.GenerateRefreshToken(row.ID, row.Email, row.Metadata.Role)

	if err != nil {
		return Session{}, Identity{}, err
	}

	err = b.refresh.Create(ctx, RefreshTokenRow{
		ID:        jti,
		UserID:    row.ID,
		TokenHash: b.tokens.HashRefreshToken(rawRefresh),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		return Session{}, Identity{}, err
	}

	session := Session{
		UserID:      row.ID,
		Email:       row.Email,
		AccessToken: access,
		ExpiresAt:   time.Now().UTC().Add(b.tokens.AccessTTL()),
	}

	b.mu.Lock()
	b.current = &session
	b.currentJTI = jti
	b.refreshRaw = rawRefresh
	b.mu.Unlock()

	b.emit(Event{Type: EventSignedIn, Session: &session})

	return session, rowIdentity(row), nil
}

// rotateLocked replaces the expired session via refresh rotation. Caller
// holds b.mu.
func (b *LocalBackend) rotateLocked(ctx context.Context) error {
	claims, err := b.tokens.VerifyRefreshToken(b.refreshRaw)

	if err != nil {
		return err
	}

	access, err := b.tokens.GenerateAccessToken(claims.UserID, claims.Email, claims.Role)

	if err != nil {
		return err
	}

	newRaw, newJTI, newExpiresAt, err := b.tokens.GenerateRefreshToken(claims.UserID, claims.Email, claims.Role)

	if err != nil {
		return err
	}

	err = b.refresh.Rotate(ctx, claims.JTI, b.tokens.HashRefreshToken(b.refreshRaw), RefreshTokenRow{
		ID:        newJTI,
		UserID:    claims.UserID,
		TokenHash: b.tokens.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		return err
	}

	b.current = &Session{
		UserID:      claims.UserID,
		Email:       claims.Email,
		AccessToken: access,
		ExpiresAt:   time.Now().UTC().Add(b.tokens.AccessTTL()),
	}
	b.currentJTI = newJTI
	b.refreshRaw = newRaw

	return nil
}

func (b *LocalBackend) emit(ev Event) {
	b.events.emit(ev)
}

func rowIdentity(row IdentityRow) Identity {
	return Identity{
		ID:             row.ID,
		Email:          row.Email,
		EmailConfirmed: row.EmailConfirmed,
		Metadata:       row.Metadata,
	}
}
