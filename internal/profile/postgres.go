package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

const selectColumns = `id, email, first_name, last_name, phone, user_type, is_active, email_verified, profile_data, created_at, updated_at`

// PostgresStore keeps profile rows in the users table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (user.AuthUser, bool, error) {
	return s.get(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (user.AuthUser, bool, error) {
	return s.get(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
}

func (s *PostgresStore) get(ctx context.Context, query, arg string) (user.AuthUser, bool, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.AuthUser{}, false, nil
		}

		return user.AuthUser{}, false, err
	}

	return u, true, nil
}

func (s *PostgresStore) Insert(ctx context.Context, u user.AuthUser) (user.AuthUser, error) {
	now := time.Now().UTC()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = user.NormalizeEmail(u.Email)

	data, err := json.Marshal(u.ProfileData)

	if err != nil {
		return user.AuthUser{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name, phone, user_type, is_active, email_verified, profile_data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.Email, u.FirstName, u.LastName, nullable(u.Phone), string(u.Role), u.IsActive, u.EmailVerified, data, u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return user.AuthUser{}, ErrEmailTaken
		}

		return user.AuthUser{}, err
	}

	return u, nil
}

// UpdateByID touches only the self-serve fields. user_type is never written
// here; role stays as registered.
func (s *PostgresStore) UpdateByID(ctx context.Context, id string, upd Update) (user.AuthUser, error) {
	var data []byte

	if upd.ProfileData != nil {
		var err error
		data, err = json.Marshal(upd.ProfileData)

		if err != nil {
			return user.AuthUser{}, err
		}
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET first_name   = COALESCE($2, first_name),
		    last_name    = COALESCE($3, last_name),
		    phone        = COALESCE($4, phone),
		    profile_data = COALESCE($5, profile_data),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING `+selectColumns,
		id, upd.FirstName, upd.LastName, upd.Phone, data,
	)

	u, err := scanUser(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.AuthUser{}, ErrNotFound
		}

		return user.AuthUser{}, err
	}

	return u, nil
}

func (s *PostgresStore) Rekey(ctx context.Context, oldID, newID string) (user.AuthUser, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+selectColumns,
		oldID, newID,
	)

	u, err := scanUser(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.AuthUser{}, ErrNotFound
		}

		return user.AuthUser{}, err
	}

	return u, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.AuthUser, error) {
	var (
		u       user.AuthUser
		rawRole string
		phone   *string
		data    []byte
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&phone,
		&rawRole,
		&u.IsActive,
		&u.EmailVerified,
		&data,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return user.AuthUser{}, err
	}

	if phone != nil {
		u.Phone = *phone
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &u.ProfileData); err != nil {
			return user.AuthUser{}, err
		}
	}

	u.Role = normalizeRole(rawRole, &u.ProfileData)

	return u, nil
}

// normalizeRole collapses the migration residue around the role field: the
// user_type column is canonical, but older rows carried a camel-cased
// "userType" key inside profile_data. That key is honored only when the
// column is empty, and it never survives past this boundary.
func normalizeRole(rawRole string, data *map[string]any) user.Role {
	if *data != nil {
		if legacy, ok := (*data)["userType"]; ok {
			delete(*data, "userType")

			if rawRole == "" {
				if s, ok := legacy.(string); ok {
					rawRole = s
				}
			}
		}
	}

	return user.RoleOrDefault(rawRole)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
