package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/identity"
)

// AuthState is the process-wide, UI-observable auth snapshot. Created in the
// loading state; settles to (user, true) or (nil, false) once the initial
// reconciliation completes.
type AuthState struct {
	User            *user.AuthUser `json:"user"`
	IsAuthenticated bool           `json:"isAuthenticated"`
	IsLoading       bool           `json:"isLoading"`
}

// Navigator abstracts the redirect side effects the store performs on auth
// transitions.
type Navigator interface {
	NavigateTo(path string)
	CurrentPath() string
}

// NopNavigator ignores navigation. Useful where redirects are handled at a
// different layer.
type NopNavigator struct{}

func (NopNavigator) NavigateTo(string)    {}
func (NopNavigator) CurrentPath() string { return "" }

// StoreOptions wires the store's collaborators. DashboardPath maps a role to
// its canonical dashboard route; EntryPath is the login view route and
// LandingPath the public route used after sign-out.
type StoreOptions struct {
	Navigator     Navigator
	DashboardPath func(user.Role) string
	EntryPath     string
	LandingPath   string
	ResolveWithin time.Duration
}

// Store owns the single mutable AuthState. All mutation funnels through the
// reconciler operations or backend auth events; everything else observes.
type Store struct {
	rec  *Reconciler
	opts StoreOptions
	log  *slog.Logger

	mu      sync.Mutex
	state   AuthState
	seq     uint64
	applied uint64
	subs    map[uint64]chan AuthState
	nextSub uint64
	closed  bool

	backendSub identity.Subscription
}

func NewStore(rec *Reconciler, opts StoreOptions, log *slog.Logger) *Store {
	if opts.Navigator == nil {
		opts.Navigator = NopNavigator{}
	}

	if opts.ResolveWithin <= 0 {
		opts.ResolveWithin = 10 * time.Second
	}

	return &Store{
		rec:   rec,
		opts:  opts,
		log:   log,
		state: AuthState{IsLoading: true},
		subs:  make(map[uint64]chan AuthState),
	}
}

// Init performs the initial session check. Backend failures here are
// swallowed to a clean signed-out state so the application always renders
// something usable.
func (s *Store) Init(ctx context.Context) {
	token := s.begin()

	u, err := s.rec.ResolveCurrentUser(ctx)

	if err != nil {
		s.log.WarnContext(ctx, "initial session check failed, treating as signed out", "err", err)
		u = nil
	}

	s.apply(token, u)
}

// Attach subscribes the store to the backend's auth-change channel. Release
// with Close at application teardown.
func (s *Store) Attach(backend identity.Backend) {
	s.backendSub = backend.OnAuthStateChange(s.onAuthEvent)
}

func (s *Store) Close() {
	if s.backendSub != nil {
		s.backendSub.Unsubscribe()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Store) GetState() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel carrying state snapshots and a cancel func.
// The channel holds only the latest snapshot; slow readers skip intermediate
// states rather than blocking the store.
func (s *Store) Subscribe() (<-chan AuthState, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan AuthState, 1)
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}

	return ch, cancel
}

func (s *Store) Login(ctx context.Context, email, password string) Result {
	token := s.begin()

	res := s.rec.Login(ctx, email, password)

	if !res.Success {
		s.settle(token)
		return res
	}

	s.apply(token, res.User)
	s.opts.Navigator.NavigateTo(s.opts.DashboardPath(res.User.Role))
	return res
}

func (s *Store) Register(ctx context.Context, in user.RegisterInput) Result {
	token := s.begin()

	res := s.rec.Register(ctx, in)

	if !res.Success {
		s.settle(token)
		return res
	}

	s.apply(token, res.User)
	s.opts.Navigator.NavigateTo(s.opts.DashboardPath(res.User.Role))
	return res
}

// Logout clears the state regardless of backend outcome; a failed remote
// sign-out still leaves this process signed out.
func (s *Store) Logout(ctx context.Context) error {
	token := s.begin()

	err := s.rec.Logout(ctx)

	if err != nil {
		s.log.WarnContext(ctx, "backend sign-out failed", "err", err)
	}

	s.apply(token, nil)
	s.opts.Navigator.NavigateTo(s.opts.LandingPath)
	return err
}

// onAuthEvent handles backend push events. A sign-in event and an in-flight
// explicit login may both resolve the same session; both run the same
// resolution function over the same immutable inputs, so whichever completes
// last wins with an identical value.
func (s *Store) onAuthEvent(ev identity.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ResolveWithin)
	defer cancel()

	switch ev.Type {
	case identity.EventSignedIn:
		token := s.begin()

		u, err := s.rec.ResolveCurrentUser(ctx)

		if err != nil {
			s.log.WarnContext(ctx, "auth event resolution failed", "err", err)
			u = nil
		}

		s.apply(token, u)

		if u != nil && s.opts.Navigator.CurrentPath() == s.opts.EntryPath {
			s.opts.Navigator.NavigateTo(s.opts.DashboardPath(u.Role))
		}

	case identity.EventSignedOut:
		token := s.begin()
		s.apply(token, nil)
		s.opts.Navigator.NavigateTo(s.opts.LandingPath)
	}
}

// begin issues a monotonically increasing resolution token and flips the
// state to loading.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.state.IsLoading = true
	s.notifyLocked()

	return s.seq
}

// apply installs a resolution outcome. Resolutions can complete out of
// request order; a completion older than the last applied one is stale and
// discarded (last-completed-wins).
func (s *Store) apply(token uint64, u *user.AuthUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token <= s.applied {
		s.log.Debug("discarding stale resolution", "token", token, "applied", s.applied)
		return
	}

	s.applied = token
	s.state = AuthState{User: u, IsAuthenticated: u != nil, IsLoading: false}
	s.notifyLocked()
}

// settle ends a failed operation's loading phase without touching the user.
func (s *Store) settle(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token <= s.applied {
		return
	}

	s.applied = token
	s.state.IsLoading = false
	s.notifyLocked()
}

func (s *Store) notifyLocked() {
	if s.closed {
		return
	}

	for _, ch := range s.subs {
		// keep only the latest snapshot
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- s.state:
		default:
		}
	}
}
