package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

// Cached is a read-through redis cache over a Store. Only id lookups are
// cached; email lookups only happen on the rare reconciliation path. Cache
// failures degrade to the inner store, never to an error.
type Cached struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCached(inner Store, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cached{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

// NewRedisClient builds the client with bounded timeouts.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func cacheKey(id string) string {
	return "profile:" + id
}

func (c *Cached) GetByID(ctx context.Context, id string) (user.AuthUser, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()

	if err == nil {
		var u user.AuthUser

		if json.Unmarshal(raw, &u) == nil {
			return u, true, nil
		}
		// corrupt entry: fall through and repopulate
	} else if err != redis.Nil {
		c.log.Debug("profile cache read failed", "err", err)
	}

	u, found, err := c.inner.GetByID(ctx, id)

	if err != nil || !found {
		return u, found, err
	}

	c.store(ctx, u)
	return u, true, nil
}

func (c *Cached) GetByEmail(ctx context.Context, email string) (user.AuthUser, bool, error) {
	return c.inner.GetByEmail(ctx, email)
}

func (c *Cached) Insert(ctx context.Context, u user.AuthUser) (user.AuthUser, error) {
	out, err := c.inner.Insert(ctx, u)

	if err == nil {
		c.store(ctx, out)
	}

	return out, err
}

func (c *Cached) UpdateByID(ctx context.Context, id string, upd Update) (user.AuthUser, error) {
	out, err := c.inner.UpdateByID(ctx, id, upd)

	if err == nil {
		c.store(ctx, out)
	} else {
		c.invalidate(ctx, id)
	}

	return out, err
}

func (c *Cached) Rekey(ctx context.Context, oldID, newID string) (user.AuthUser, error) {
	out, err := c.inner.Rekey(ctx, oldID, newID)

	c.invalidate(ctx, oldID)

	if err == nil {
		c.store(ctx, out)
	}

	return out, err
}

func (c *Cached) DeleteByID(ctx context.Context, id string) error {
	err := c.inner.DeleteByID(ctx, id)

	c.invalidate(ctx, id)

	return err
}

func (c *Cached) store(ctx context.Context, u user.AuthUser) {
	raw, err := json.Marshal(u)

	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, cacheKey(u.ID), raw, c.ttl).Err(); err != nil {
		c.log.Debug("profile cache write failed", "err", err)
	}
}

func (c *Cached) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.log.Debug("profile cache invalidation failed", "err", err)
	}
}
