package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentitiesRepo stores local-provider credentials in the identities table.
type IdentitiesRepo struct {
	pool *pgxpool.Pool
}

func NewIdentitiesRepo(pool *pgxpool.Pool) *IdentitiesRepo {
	return &IdentitiesRepo{pool: pool}
}

func (r *IdentitiesRepo) GetByEmail(ctx context.Context, email string) (IdentityRow, bool, error) {
	return r.get(ctx, `SELECT id, email, password_hash, email_confirmed, metadata, created_at
		FROM identities
		WHERE email = $1`, email)
}

func (r *IdentitiesRepo) GetByID(ctx context.Context, id string) (IdentityRow, bool, error) {
	return r.get(ctx, `SELECT id, email, password_hash, email_confirmed, metadata, created_at
		FROM identities
		WHERE id = $1`, id)
}

func (r *IdentitiesRepo) get(ctx context.Context, query, arg string) (IdentityRow, bool, error) {
	var (
		row  IdentityRow
		meta []byte
	)

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&row.ID,
		&row.Email,
		&row.PasswordHash,
		&row.EmailConfirmed,
		&meta,
		&row.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IdentityRow{}, false, nil
		}

		return IdentityRow{}, false, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &row.Metadata); err != nil {
			return IdentityRow{}, false, err
		}
	}

	return row, true, nil
}

func (r *IdentitiesRepo) Create(ctx context.Context, row IdentityRow) error {
	meta, err := json.Marshal(row.Metadata)

	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO identities (id, email, password_hash, email_confirmed, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		row.ID, row.Email, row.PasswordHash, row.EmailConfirmed, meta, row.CreatedAt,
	)

	return err
}

// RefreshTokensRepo persists refresh token state for the local provider.
type RefreshTokensRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokensRepo(pool *pgxpool.Pool) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row RefreshTokenRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
	)
	return err
}

// Rotate revokes oldJTI and records newRow in one transaction. The old row is
// locked to prevent concurrent refreshes reusing the same token.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldJTI, presentedHash string, newRow RefreshTokenRow) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var (
		storedHash string
		expiresAt  time.Time
		revokedAt  *time.Time
	)

	err = tx.QueryRow(ctx, `
		SELECT token_hash, expires_at, revoked_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, oldJTI).Scan(&storedHash, &expiresAt, &revokedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRefreshNotFound
		}

		return err
	}

	if revokedAt != nil || storedHash != presentedHash {
		return ErrRefreshInvalid
	}

	if time.Now().UTC().After(expiresAt) {
		return ErrRefreshExpired
	}

	_, err = tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by = $2
		WHERE id = $1
	`, oldJTI, newRow.ID)

	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		newRow.ID, newRow.UserID, newRow.TokenHash, newRow.ExpiresAt, newRow.RevokedAt, newRow.ReplacedBy, newRow.CreatedAt,
	)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *RefreshTokensRepo) Revoke(ctx context.Context, jti string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, jti)

	return err
}

func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)

	return err
}
