package profile

import (
	"context"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

// StoreObserver records one logical store operation. Satisfied by the
// observability package.
type StoreObserver interface {
	ObserveStore(op string, fn func() error) error
}

// Instrumented decorates a Store with per-operation latency and error-class
// accounting. The not-found outcome of reads is not an error and is recorded
// as ok.
type Instrumented struct {
	inner Store
	obs   StoreObserver
}

func NewInstrumented(inner Store, obs StoreObserver) *Instrumented {
	return &Instrumented{inner: inner, obs: obs}
}

func (s *Instrumented) GetByID(ctx context.Context, id string) (u user.AuthUser, found bool, err error) {
	err = s.obs.ObserveStore("get_by_id", func() error {
		u, found, err = s.inner.GetByID(ctx, id)
		return err
	})
	return
}

func (s *Instrumented) GetByEmail(ctx context.Context, email string) (u user.AuthUser, found bool, err error) {
	err = s.obs.ObserveStore("get_by_email", func() error {
		u, found, err = s.inner.GetByEmail(ctx, email)
		return err
	})
	return
}

func (s *Instrumented) Insert(ctx context.Context, in user.AuthUser) (u user.AuthUser, err error) {
	err = s.obs.ObserveStore("insert", func() error {
		u, err = s.inner.Insert(ctx, in)
		return err
	})
	return
}

func (s *Instrumented) UpdateByID(ctx context.Context, id string, upd Update) (u user.AuthUser, err error) {
	err = s.obs.ObserveStore("update", func() error {
		u, err = s.inner.UpdateByID(ctx, id, upd)
		return err
	})
	return
}

func (s *Instrumented) Rekey(ctx context.Context, oldID, newID string) (u user.AuthUser, err error) {
	err = s.obs.ObserveStore("rekey", func() error {
		u, err = s.inner.Rekey(ctx, oldID, newID)
		return err
	})
	return
}

func (s *Instrumented) DeleteByID(ctx context.Context, id string) error {
	return s.obs.ObserveStore("delete", func() error {
		return s.inner.DeleteByID(ctx, id)
	})
}
