package profile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

type stubStore struct {
	rows map[string]user.AuthUser
}

func (s *stubStore) GetByID(ctx context.Context, id string) (user.AuthUser, bool, error) {
	u, ok := s.rows[id]
	return u, ok, nil
}

func (s *stubStore) GetByEmail(ctx context.Context, email string) (user.AuthUser, bool, error) {
	for _, u := range s.rows {
		if u.Email == email {
			return u, true, nil
		}
	}
	return user.AuthUser{}, false, nil
}

func (s *stubStore) Insert(ctx context.Context, u user.AuthUser) (user.AuthUser, error) {
	s.rows[u.ID] = u
	return u, nil
}

func (s *stubStore) UpdateByID(ctx context.Context, id string, upd Update) (user.AuthUser, error) {
	u, ok := s.rows[id]

	if !ok {
		return user.AuthUser{}, ErrNotFound
	}

	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}

	s.rows[id] = u
	return u, nil
}

func (s *stubStore) Rekey(ctx context.Context, oldID, newID string) (user.AuthUser, error) {
	u, ok := s.rows[oldID]

	if !ok {
		return user.AuthUser{}, ErrNotFound
	}

	delete(s.rows, oldID)
	u.ID = newID
	s.rows[newID] = u
	return u, nil
}

func (s *stubStore) DeleteByID(ctx context.Context, id string) error {
	delete(s.rows, id)
	return nil
}

// unreachableRedis returns a client whose every call fails fast. The cache
// must stay transparent: reads and writes fall through to the inner store.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCachedDegradesToInnerStore(t *testing.T) {
	inner := &stubStore{rows: map[string]user.AuthUser{
		"u1": {ID: "u1", Email: "a@demo.com", FirstName: "Ada", Role: user.RoleStudent},
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCached(inner, unreachableRedis(), time.Minute, log)

	ctx := context.Background()

	u, found, err := c.GetByID(ctx, "u1")

	if err != nil || !found {
		t.Fatalf("GetByID = %v, %v, %v", u, found, err)
	}
	if u.Email != "a@demo.com" {
		t.Fatalf("row = %+v", u)
	}

	if _, found, err := c.GetByID(ctx, "missing"); err != nil || found {
		t.Fatalf("missing row: found=%v err=%v", found, err)
	}

	name := "Grace"

	updated, err := c.UpdateByID(ctx, "u1", Update{FirstName: &name})

	if err != nil || updated.FirstName != "Grace" {
		t.Fatalf("update = %+v, %v", updated, err)
	}

	// subsequent reads observe the write
	u, _, _ = c.GetByID(ctx, "u1")

	if u.FirstName != "Grace" {
		t.Fatalf("read after write = %+v", u)
	}

	rekeyed, err := c.Rekey(ctx, "u1", "u2")

	if err != nil || rekeyed.ID != "u2" {
		t.Fatalf("rekey = %+v, %v", rekeyed, err)
	}

	if _, found, _ := c.GetByID(ctx, "u1"); found {
		t.Fatal("old id still resolves after rekey")
	}
	if u, found, _ := c.GetByEmail(ctx, "a@demo.com"); !found || u.ID != "u2" {
		t.Fatalf("email lookup = %+v, %v", u, found)
	}
}
