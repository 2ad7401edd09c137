package observability

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgErrClasses names the postgres failure modes worth their own series;
// anything else is reported under its raw code.
var pgErrClasses = map[string]string{
	"23505": "unique_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
}

// ObserveStore runs one logical profile-store operation and accounts for its
// latency and, on failure, the error class.
func (p *Prom) ObserveStore(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	if err == nil {
		p.StoreOpDuration.WithLabelValues(op, "ok").Observe(time.Since(start).Seconds())
		return nil
	}

	p.StoreOpDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
	p.StoreErrors.WithLabelValues(op, classifyStoreErr(err)).Inc()
	return err
}

func classifyStoreErr(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		if class, ok := pgErrClasses[pgErr.Code]; ok {
			return class
		}
		return "pg_" + pgErr.Code
	}

	return "other"
}
