package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/identity"
)

// recNav records navigation and reports a settable current path.
type recNav struct {
	mu      sync.Mutex
	current string
	visited []string
}

func (n *recNav) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visited = append(n.visited, path)
	n.current = path
}

func (n *recNav) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recNav) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.visited) == 0 {
		return ""
	}
	return n.visited[len(n.visited)-1]
}

func testDashboardPath(role user.Role) string {
	return "/dash/" + string(role)
}

func newTestStore(backend *fakeBackend, profiles *memProfiles, nav *recNav) *Store {
	rec := NewReconciler(backend, profiles, testLogger(), nil)

	return NewStore(rec, StoreOptions{
		Navigator:     nav,
		DashboardPath: testDashboardPath,
		EntryPath:     "/auth",
		LandingPath:   "/",
	}, testLogger())
}

func TestStoreStartsLoading(t *testing.T) {
	s := newTestStore(&fakeBackend{}, newMemProfiles(), &recNav{})

	state := s.GetState()

	if !state.IsLoading || state.IsAuthenticated || state.User != nil {
		t.Fatalf("initial state = %+v, want loading and signed out", state)
	}
}

func TestInitSettlesToSignedOut(t *testing.T) {
	s := newTestStore(&fakeBackend{}, newMemProfiles(), &recNav{})

	s.Init(context.Background())

	state := s.GetState()

	if state.IsLoading {
		t.Fatal("still loading after Init")
	}
	if state.IsAuthenticated || state.User != nil {
		t.Fatalf("state = %+v, want signed out", state)
	}
}

// Backend failures during the initial check degrade to signed-out rather than
// leaving the state stuck in loading.
func TestInitSwallowsBackendError(t *testing.T) {
	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return nil, errors.New("backend unreachable")
		},
	}

	s := newTestStore(backend, newMemProfiles(), &recNav{})
	s.Init(context.Background())

	state := s.GetState()

	if state.IsLoading || state.IsAuthenticated {
		t.Fatalf("state = %+v, want settled signed-out", state)
	}
}

func TestInitRestoresExistingSession(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "student@demo.com", user.RoleStudent)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "student@demo.com"}, nil
		},
	}

	s := newTestStore(backend, profiles, &recNav{})
	s.Init(context.Background())

	state := s.GetState()

	if !state.IsAuthenticated || state.User == nil || state.User.ID != "u1" {
		t.Fatalf("state = %+v, want restored session for u1", state)
	}
}

func TestLoginAppliesStateAndNavigates(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "admin@demo.com", user.RoleAdmin)

	backend := &fakeBackend{
		signInFn: func(ctx context.Context, email, password string) (identity.Session, identity.Identity, error) {
			return identity.Session{UserID: "u1", Email: email}, identity.Identity{ID: "u1", Email: email}, nil
		},
	}

	nav := &recNav{}
	s := newTestStore(backend, profiles, nav)
	s.Init(context.Background())

	res := s.Login(context.Background(), "admin@demo.com", "admin123")

	if !res.Success {
		t.Fatalf("login failed: %+v", res.Err)
	}

	state := s.GetState()

	if !state.IsAuthenticated || state.User.Role != user.RoleAdmin {
		t.Fatalf("state = %+v", state)
	}
	if nav.last() != "/dash/admin" {
		t.Fatalf("navigated to %q, want /dash/admin", nav.last())
	}
}

// A failed login settles the loading flag but never disturbs an existing
// signed-in user.
func TestFailedLoginKeepsCurrentUser(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "student@demo.com", user.RoleStudent)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "student@demo.com"}, nil
		},
	}

	nav := &recNav{}
	s := newTestStore(backend, profiles, nav)
	s.Init(context.Background())

	res := s.Login(context.Background(), "nope@demo.com", "wrong")

	if res.Success {
		t.Fatal("expected login failure")
	}
	if res.Err.Kind != KindInvalidCredentials {
		t.Fatalf("kind = %q", res.Err.Kind)
	}

	state := s.GetState()

	if state.IsLoading {
		t.Fatal("loading flag not settled after failed login")
	}
	if !state.IsAuthenticated || state.User == nil || state.User.ID != "u1" {
		t.Fatalf("existing session disturbed: %+v", state)
	}
	if nav.last() != "" {
		t.Fatalf("failed login navigated to %q", nav.last())
	}
}

func TestLogoutClearsStateDespiteBackendError(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "student@demo.com", user.RoleStudent)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "student@demo.com"}, nil
		},
		signOutFn: func(ctx context.Context) error {
			return errors.New("remote sign-out failed")
		},
	}

	nav := &recNav{}
	s := newTestStore(backend, profiles, nav)
	s.Init(context.Background())

	err := s.Logout(context.Background())

	if err == nil {
		t.Fatal("expected backend error to surface")
	}

	state := s.GetState()

	if state.IsAuthenticated || state.User != nil || state.IsLoading {
		t.Fatalf("state = %+v, want cleared", state)
	}
	if nav.last() != "/" {
		t.Fatalf("navigated to %q, want landing", nav.last())
	}
}

// Resolutions can complete out of order; the one holding the newest token
// wins and older completions are dropped.
func TestStaleResolutionDiscarded(t *testing.T) {
	s := newTestStore(&fakeBackend{}, newMemProfiles(), &recNav{})

	older := s.begin()
	newer := s.begin()

	winner := seededProfile("win", "win@demo.com", user.RoleAdmin)
	loser := seededProfile("lose", "lose@demo.com", user.RoleStudent)

	s.apply(newer, &winner)
	s.apply(older, &loser)

	state := s.GetState()

	if state.User == nil || state.User.ID != "win" {
		t.Fatalf("state = %+v, stale resolution overwrote newer one", state)
	}
}

func TestSettleDoesNotTouchUser(t *testing.T) {
	s := newTestStore(&fakeBackend{}, newMemProfiles(), &recNav{})

	u := seededProfile("u1", "a@demo.com", user.RoleDonor)
	s.apply(s.begin(), &u)

	token := s.begin()

	if !s.GetState().IsLoading {
		t.Fatal("begin did not set loading")
	}

	s.settle(token)

	state := s.GetState()

	if state.IsLoading {
		t.Fatal("settle did not clear loading")
	}
	if state.User == nil || state.User.ID != "u1" {
		t.Fatalf("settle changed the user: %+v", state)
	}
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	s := newTestStore(&fakeBackend{}, newMemProfiles(), &recNav{})

	ch, cancel := s.Subscribe()
	defer cancel()

	a := seededProfile("a", "a@demo.com", user.RoleStudent)
	b := seededProfile("b", "b@demo.com", user.RoleAdmin)

	s.apply(s.begin(), &a)
	s.apply(s.begin(), &b)

	// the single-slot channel holds only the newest snapshot
	state := <-ch

	if state.User == nil || state.User.ID != "b" {
		t.Fatalf("snapshot = %+v, want latest", state)
	}

	cancel()

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
}

func TestSignedOutEventClearsState(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "student@demo.com", user.RoleStudent)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "student@demo.com"}, nil
		},
	}

	nav := &recNav{}
	s := newTestStore(backend, profiles, nav)
	s.Init(context.Background())

	s.onAuthEvent(identity.Event{Type: identity.EventSignedOut})

	state := s.GetState()

	if state.IsAuthenticated || state.User != nil {
		t.Fatalf("state = %+v, want cleared", state)
	}
	if nav.last() != "/" {
		t.Fatalf("navigated to %q, want landing", nav.last())
	}
}

func TestSignedInEventRedirectsFromEntryView(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "donor@demo.com", user.RoleDonor)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "donor@demo.com"}, nil
		},
	}

	nav := &recNav{current: "/auth"}
	s := newTestStore(backend, profiles, nav)

	s.onAuthEvent(identity.Event{Type: identity.EventSignedIn})

	state := s.GetState()

	if !state.IsAuthenticated || state.User.Role != user.RoleDonor {
		t.Fatalf("state = %+v", state)
	}
	if nav.last() != "/dash/donor" {
		t.Fatalf("navigated to %q, want /dash/donor", nav.last())
	}
}

func TestSignedInEventStaysPutElsewhere(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "donor@demo.com", user.RoleDonor)

	backend := &fakeBackend{
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "donor@demo.com"}, nil
		},
	}

	nav := &recNav{current: "/scholarships"}
	s := newTestStore(backend, profiles, nav)

	s.onAuthEvent(identity.Event{Type: identity.EventSignedIn})

	if nav.last() != "" {
		t.Fatalf("navigated to %q, want no redirect away from current view", nav.last())
	}
}

// An explicit login and the backend's sign-in event race to resolve the same
// session; both must converge on the same state.
func TestLoginAndEventConverge(t *testing.T) {
	profiles := newMemProfiles()
	profiles.byID["u1"] = seededProfile("u1", "admin@demo.com", user.RoleAdmin)

	backend := &fakeBackend{
		signInFn: func(ctx context.Context, email, password string) (identity.Session, identity.Identity, error) {
			return identity.Session{UserID: "u1", Email: email}, identity.Identity{ID: "u1", Email: email}, nil
		},
		getSessionFn: func(ctx context.Context) (*identity.Session, error) {
			return &identity.Session{UserID: "u1", Email: "admin@demo.com"}, nil
		},
	}

	s := newTestStore(backend, profiles, &recNav{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.Login(context.Background(), "admin@demo.com", "admin123")
	}()
	go func() {
		defer wg.Done()
		s.onAuthEvent(identity.Event{Type: identity.EventSignedIn})
	}()

	wg.Wait()

	state := s.GetState()

	if state.IsLoading {
		t.Fatal("state stuck in loading after concurrent resolutions")
	}
	if !state.IsAuthenticated || state.User == nil || state.User.ID != "u1" {
		t.Fatalf("state = %+v, want u1 signed in", state)
	}
}
