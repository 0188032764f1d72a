package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/security"
)

// EnsureSuperuser creates the configured superuser account if it does
// not exist yet. A no-op when the seed settings are absent.
func EnsureSuperuser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return nil
	}

	email := user.NormalizeEmail(cfg.SuperuserEmail)

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.SuperuserPassword)

	if err != nil {
		return err
	}

	u := user.NewSuperuser(email, hash, cfg.SuperuserName)

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.IsActive, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)

	return err
}
