package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// GoTrueBackend talks to a hosted GoTrue-compatible identity service over its
// REST surface. The service has no push channel on this API, so auth-change
// events are emitted for this client's own sign-in/sign-out transitions.
type GoTrueBackend struct {
	baseURL    string
	apiKey     string
	configured bool
	httpc      *http.Client
	log        *slog.Logger

	mu           sync.Mutex
	current      *Session
	refreshToken string

	events *broadcaster
}

type GoTrueConfig struct {
	URL        string
	Key        string
	Configured bool
}

func NewGoTrueBackend(cfg GoTrueConfig, log *slog.Logger) *GoTrueBackend {
	return &GoTrueBackend{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.Key,
		configured: cfg.Configured,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		log:        log,
		events:     newBroadcaster(),
	}
}

type gotrueUser struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	EmailConfirmedAt string   `json:"email_confirmed_at"`
	UserMetadata     Metadata `json:"user_metadata"`
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b *GoTrueBackend) SignInWithPassword(ctx context.Context, email, password string) (Session, Identity, error) {
	if !b.configured {
		return Session{}, Identity{}, ErrNotConfigured
	}

	body := map[string]string{"email": email, "password": password}

	var out gotrueSession

	err := b.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "", &out)

	if err != nil {
		return Session{}, Identity{}, err
	}

	return b.adopt(out)
}

func (b *GoTrueBackend) SignUp(ctx context.Context, email, password string, meta Metadata) (Session, Identity, error) {
	if !b.configured {
		return Session{}, Identity{}, ErrNotConfigured
	}

	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}

	var out gotrueSession

	err := b.do(ctx, http.MethodPost, "/auth/v1/signup", body, "", &out)

	if err != nil {
		return Session{}, Identity{}, err
	}

	return b.adopt(out)
}

func (b *GoTrueBackend) SignOut(ctx context.Context) error {
	if !b.configured {
		return ErrNotConfigured
	}

	b.mu.Lock()
	token := ""
	if b.current != nil {
		token = b.current.AccessToken
	}
	b.current = nil
	b.refreshToken = ""
	b.mu.Unlock()

	if token != "" {
		if err := b.do(ctx, http.MethodPost, "/auth/v1/logout", nil, token, nil); err != nil {
			// best effort: the local session is gone either way
			b.log.Warn("remote sign-out failed", "err", err)
		}
	}

	b.events.emit(Event{Type: EventSignedOut})
	return nil
}

func (b *GoTrueBackend) GetSession(ctx context.Context) (*Session, error) {
	if !b.configured {
		return nil, ErrNotConfigured
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, nil
	}

	if b.current.Expired() {
		if err := b.refreshLocked(ctx); err != nil {
			b.log.Debug("token refresh failed, dropping session", "err", err)
			b.current = nil
			b.refreshToken = ""
			return nil, nil
		}
	}

	s := *b.current
	return &s, nil
}

func (b *GoTrueBackend) GetUser(ctx context.Context) (*Identity, error) {
	if !b.configured {
		return nil, ErrNotConfigured
	}

	s, err := b.GetSession(ctx)

	if err != nil || s == nil {
		return nil, err
	}

	var out gotrueUser

	if err := b.do(ctx, http.MethodGet, "/auth/v1/user", nil, s.AccessToken, &out); err != nil {
		return nil, err
	}

	id := gotrueIdentity(out)
	return &id, nil
}

func (b *GoTrueBackend) OnAuthStateChange(fn func(Event)) Subscription {
	return b.events.subscribe(fn)
}

func (b *GoTrueBackend) adopt(out gotrueSession) (Session, Identity, error) {
	if out.User.ID == "" {
		return Session{}, Identity{}, errors.New("no user data in backend response")
	}

	session := Session{
		UserID:      out.User.ID,
		Email:       out.User.Email,
		AccessToken: out.AccessToken,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second),
	}

	b.mu.Lock()
	b.current = &session
	b.refreshToken = out.RefreshToken
	b.mu.Unlock()

	b.events.emit(Event{Type: EventSignedIn, Session: &session})

	return session, gotrueIdentity(out.User), nil
}

// refreshLocked exchanges the stored refresh token for a new session. Caller
// holds b.mu.
func (b *GoTrueBackend) refreshLocked(ctx context.Context) error {
	if b.refreshToken == "" {
		return errors.New("no refresh token")
	}

	body := map[string]string{"refresh_token": b.refreshToken}

	var out gotrueSession

	err := b.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", body, "", &out)

	if err != nil {
		return err
	}

	b.current = &Session{
		UserID:      out.User.ID,
		Email:       out.User.Email,
		AccessToken: out.AccessToken,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	b.refreshToken = out.RefreshToken

	return nil
}

func (b *GoTrueBackend) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader

	if body != nil {
		buf, err := json.Marshal(body)

		if err != nil {
			return err
		}

		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)

	if err != nil {
		return err
	}

	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpc.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return errors.New(backendErrorText(raw, resp.StatusCode))
	}

	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}

	return nil
}

// backendErrorText digs the human-readable message out of the error payload.
// The raw text is preserved so the session layer can classify it.
func backendErrorText(raw []byte, status int) string {
	var e gotrueError

	if json.Unmarshal(raw, &e) == nil {
		for _, msg := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
			if msg != "" {
				return msg
			}
		}
	}

	return fmt.Sprintf("identity backend returned status %d", status)
}

func gotrueIdentity(u gotrueUser) Identity {
	return Identity{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != "",
		Metadata:       u.UserMetadata,
	}
}
