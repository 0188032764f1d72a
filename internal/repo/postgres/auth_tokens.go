package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/observability"
)

// AuthTokensRepo stores API token hashes. Raw tokens never touch the
// database.
type AuthTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAuthTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *AuthTokensRepo {
	return &AuthTokensRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *AuthTokensRepo) observe(op string, fn func() error) error {
	if r.prom != nil {

		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *AuthTokensRepo) Insert(ctx context.Context, id, userID, tokenHash string, expiresAt *time.Time, createdAt time.Time) error {
	return r.observe("auth_tokens.insert", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO auth_tokens (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5)
			`,
			id, userID, tokenHash, expiresAt, createdAt,
		)
		return err
	})
}

// UserByHash resolves a token hash to its owner. Expired tokens are
// filtered out in SQL so callers never see them.
func (r *AuthTokensRepo) UserByHash(ctx context.Context, tokenHash string) (user.User, *time.Time, error) {
	var u user.User
	var expiresAt *time.Time

	err := r.observe("auth_tokens.user_by_hash", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT u.id, u.email, u.password_hash, u.name, u.is_active, u.is_staff, u.is_superuser, u.last_login, u.created_at, u.updated_at, t.expires_at
			FROM auth_tokens t
			JOIN users u ON u.id = t.user_id
			WHERE t.token_hash = $1
			  AND (t.expires_at IS NULL OR t.expires_at > NOW())
		`, tokenHash).Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.Name,
			&u.IsActive,
			&u.IsStaff,
			&u.IsSuperuser,
			&u.LastLogin,
			&u.CreatedAt,
			&u.UpdatedAt,
			&expiresAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, nil, user.ErrNotFound
		}

		return user.User{}, nil, err
	}

	return u, expiresAt, nil
}

// DeleteByHash is idempotent: revoking an already-deleted token is not
// an error.
func (r *AuthTokensRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	return r.observe("auth_tokens.delete_by_hash", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token_hash = $1`, tokenHash)
		return err
	})
}

func (r *AuthTokensRepo) DeleteByUser(ctx context.Context, userID string) error {
	return r.observe("auth_tokens.delete_by_user", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID)
		return err
	})
}
