package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/observability"
	"github.com/bitekeeper/recipebox/internal/utils"
)

var ErrEmailAlreadyUsed = errors.New("email already in use")

const userColumns = `id, email, password_hash, name, is_active, is_staff, is_superuser, last_login, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {

		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
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
	)

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.IsActive, u.IsStaff, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {

			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// UpdateProfile changes only the given fields. Nil pointers leave the
// stored value alone.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, email, name, passwordHash *string) (user.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	argsPosition := 2

	if email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", argsPosition))
		args = append(args, *email)
		argsPosition++
	}

	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argsPosition))
		args = append(args, *name)
		argsPosition++
	}

	if passwordHash != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", argsPosition))
		args = append(args, *passwordHash)
		argsPosition++
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns

	var u user.User

	err := r.observe("users.update_profile", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, query, args...))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.observe("users.set_last_login", func() error {
		_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
		return err
	})
}

// ListCursor pages accounts newest first for the admin surface.
func (r *UsersRepo) ListCursor(
	ctx context.Context,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []user.User, nextCursor *string, hasMore bool, err error) {
	op := "users.list_cursor"

	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	limitPlusOne := limit + 1

	var rows pgx.Rows
	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, afterCreatedAt, afterID, limitPlusOne)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]user.User, 0, limit)

	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeUserCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

// AdminPatch flips account flags or renames an account.
func (r *UsersRepo) AdminPatch(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	argsPosition := 2

	if req.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argsPosition))
		args = append(args, *req.Name)
		argsPosition++
	}

	if req.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", argsPosition))
		args = append(args, *req.IsActive)
		argsPosition++
	}

	if req.IsStaff != nil {
		sets = append(sets, fmt.Sprintf("is_staff = $%d", argsPosition))
		args = append(args, *req.IsStaff)
		argsPosition++
	}

	if req.IsSuperuser != nil {
		sets = append(sets, fmt.Sprintf("is_superuser = $%d", argsPosition))
		args = append(args, *req.IsSuperuser)
		argsPosition++
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns

	var u user.User

	err := r.observe("users.admin_patch", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, query, args...))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (err error) {
	var tag pgconn.CommandTag

	err = r.observe("users.delete", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)

		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = user.ErrNotFound

		return
	}

	return
}
