package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
	"github.com/youthdreamers/scholarhub/internal/identity"
	"github.com/youthdreamers/scholarhub/internal/observability"
	"github.com/youthdreamers/scholarhub/internal/profile"
)

// Result is the structured outcome of login/register. Never thrown across
// the UI boundary; callers branch on Success and Err.Kind.
type Result struct {
	Success bool
	User    *user.AuthUser
	Err     *AuthError
	Message string
}

// Reconciler produces one authoritative AuthUser (or nil) from the two
// independent sources of truth: the identity backend session and the profile
// store record. It owns the healing logic for the case where the two have
// drifted apart.
type Reconciler struct {
	backend  identity.Backend
	profiles profile.Store
	log      *slog.Logger
	metrics  *observability.Prom

	// Overlapping resolutions for the same identity id would race each
	// other into duplicate profile creation; singleflight collapses them.
	group singleflight.Group
}

func NewReconciler(backend identity.Backend, profiles profile.Store, log *slog.Logger, metrics *observability.Prom) *Reconciler {
	return &Reconciler{
		backend:  backend,
		profiles: profiles,
		log:      log,
		metrics:  metrics,
	}
}

// ResolveCurrentUser reads the ambient session and resolves it to an
// AuthUser, or nil when signed out. Idempotent: absent backend state changes,
// repeated calls yield the same answer.
func (r *Reconciler) ResolveCurrentUser(ctx context.Context) (*user.AuthUser, error) {
	start := time.Now()

	sess, err := r.backend.GetSession(ctx)

	if err != nil {
		r.observe("resolve", classify(err).Kind, start)
		return nil, err
	}

	if sess == nil {
		r.observe("resolve", "", start)
		return nil, nil
	}

	u, err := r.resolve(ctx, sess.UserID, sess.Email)

	if err != nil {
		r.observe("resolve", classify(err).Kind, start)
		return nil, err
	}

	r.observe("resolve", "", start)
	return u, nil
}

func (r *Reconciler) Login(ctx context.Context, email, password string) Result {
	start := time.Now()
	email = user.NormalizeEmail(email)

	sess, _, err := r.backend.SignInWithPassword(ctx, email, password)

	if err != nil {
		ae := classify(err)
		r.log.InfoContext(ctx, "login rejected", "email", email, "kind", ae.Kind)
		r.observe("login", ae.Kind, start)
		return Result{Success: false, Err: ae}
	}

	u, err := r.resolve(ctx, sess.UserID, sess.Email)

	if err != nil {
		ae := classify(err)
		r.observe("login", ae.Kind, start)
		return Result{Success: false, Err: ae}
	}

	r.log.InfoContext(ctx, "login successful", "user_id", u.ID, "role", u.Role)
	r.observe("login", "", start)
	return Result{Success: true, User: u, Message: "Login successful"}
}

func (r *Reconciler) Register(ctx context.Context, in user.RegisterInput) Result {
	start := time.Now()
	email := user.NormalizeEmail(in.Email)

	role, ok := user.ParseRole(string(in.Role))

	if !ok {
		ae := newAuthError(KindUnknown, "Unsupported account role.")
		r.observe("register", ae.Kind, start)
		return Result{Success: false, Err: ae}
	}

	meta := identity.Metadata{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      string(role),
	}

	_, ident, err := r.backend.SignUp(ctx, email, in.Password, meta)

	if err != nil {
		ae := classify(err)
		r.log.InfoContext(ctx, "registration rejected", "email", email, "kind", ae.Kind)
		r.observe("register", ae.Kind, start)
		return Result{Success: false, Err: ae}
	}

	now := time.Now().UTC()

	u, err := r.profiles.Insert(ctx, user.AuthUser{
		ID:            ident.ID,
		Email:         email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		Role:          role,
		EmailVerified: true,
		IsActive:      true,
		ProfileData:   in.ProfileData,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	if err != nil {
		// The sign-up's own SIGNED_IN event can win the race and build the
		// profile through event-path resolution before this insert lands.
		// A unique violation here means the account is already provisioned;
		// converge on the resolved row instead of reporting failure.
		if errors.Is(err, profile.ErrEmailTaken) {
			resolved, rerr := r.resolve(ctx, ident.ID, email)

			if rerr == nil {
				r.log.InfoContext(ctx, "registration converged with concurrent resolution", "user_id", resolved.ID)
				r.observe("register", "", start)
				return Result{Success: true, User: resolved, Message: "Account created successfully"}
			}
		}

		// The identity record stays; reconciliation rebuilds the profile
		// from its metadata on the next login, so nothing is orphaned for
		// good.
		r.log.WarnContext(ctx, "profile insert failed after identity creation", "identity_id", ident.ID, "err", err)
		r.observe("register", KindProfileCreateFailed, start)
		return Result{Success: false, Err: newAuthError(KindProfileCreateFailed,
			"Your account was created but the profile could not be saved. Signing in will finish the setup.")}
	}

	r.log.InfoContext(ctx, "registration successful", "user_id", u.ID, "role", u.Role)
	r.observe("register", "", start)
	return Result{Success: true, User: &u, Message: "Account created successfully"}
}

func (r *Reconciler) Logout(ctx context.Context) error {
	start := time.Now()
	err := r.backend.SignOut(ctx)

	if err != nil {
		r.observe("logout", classify(err).Kind, start)
		return err
	}

	r.observe("logout", "", start)
	return nil
}

// resolve looks up the profile for an identity id, healing mismatches.
// Serialized per identity id: concurrent callers for the same id share one
// execution. All resolution paths go through here, so the explicit login path
// and the async auth-event path compute identical results from identical
// backend state.
func (r *Reconciler) resolve(ctx context.Context, id, email string) (*user.AuthUser, error) {
	v, err, _ := r.group.Do(id, func() (any, error) {
		u, found, err := r.profiles.GetByID(ctx, id)

		if err != nil {
			return nil, err
		}

		if found {
			return &u, nil
		}

		return r.reconcile(ctx, id, email)
	})

	if err != nil {
		return nil, err
	}

	return v.(*user.AuthUser), nil
}

// reconcile repairs the valid-session-but-no-profile gap. Admin tooling can
// recreate an identity record under a fresh id while the profile row keeps
// the old one; the email lookup catches that and re-keys the row. Failing
// that, a profile is synthesized from identity metadata when it carries a
// role tag.
func (r *Reconciler) reconcile(ctx context.Context, id, email string) (*user.AuthUser, error) {
	email = user.NormalizeEmail(email)

	existing, found, err := r.profiles.GetByEmail(ctx, email)

	if err != nil {
		return nil, err
	}

	if found {
		rekeyed, err := r.profiles.Rekey(ctx, existing.ID, id)

		if err != nil {
			return nil, err
		}

		r.log.InfoContext(ctx, "profile re-keyed to current identity", "old_id", existing.ID, "new_id", id)
		return &rekeyed, nil
	}

	ident, err := r.backend.GetUser(ctx)

	if err != nil {
		return nil, err
	}

	if ident == nil || ident.Metadata.Role == "" {
		return nil, newAuthError(KindProfileNotFound,
			"No profile exists for this account. Please register, or contact support if you believe this is an error.")
	}

	role, ok := user.ParseRole(ident.Metadata.Role)

	if !ok {
		return nil, newAuthError(KindProfileNotFound,
			"No profile exists for this account. Please register, or contact support if you believe this is an error.")
	}

	now := time.Now().UTC()

	u, err := r.profiles.Insert(ctx, user.AuthUser{
		ID:            id,
		Email:         email,
		FirstName:     ident.Metadata.FirstName,
		LastName:      ident.Metadata.LastName,
		Phone:         ident.Metadata.Phone,
		Role:          role,
		EmailVerified: ident.EmailConfirmed,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	if err != nil {
		return nil, newAuthError(KindProfileCreateFailed, "Failed to create user profile.")
	}

	r.log.InfoContext(ctx, "profile synthesized from identity metadata", "user_id", id, "role", role)
	return &u, nil
}

func (r *Reconciler) observe(op string, kind ErrorKind, start time.Time) {
	if r.metrics == nil {
		return
	}

	result := "ok"

	if kind != "" {
		result = string(kind)
	}

	r.metrics.ObserveAuthOp(op, result, start)
}
