package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitekeeper/recipebox/internal/domain/recipe"
	"github.com/bitekeeper/recipebox/internal/observability"
)

// AttrsRepo serves both tags and ingredients. The two differ only in
// their table and the join table linking them to recipes, so one repo
// is parameterized instead of written twice.
type AttrsRepo struct {
	pool       *pgxpool.Pool
	prom       *observability.Prom
	table      string
	joinTable  string
	joinColumn string
	opPrefix   string
}

func NewTagsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AttrsRepo {
	return &AttrsRepo{
		pool:       pool,
		prom:       prom,
		table:      "tags",
		joinTable:  "recipe_tags",
		joinColumn: "tag_id",
		opPrefix:   "tags",
	}
}

func NewIngredientsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AttrsRepo {
	return &AttrsRepo{
		pool:       pool,
		prom:       prom,
		table:      "ingredients",
		joinTable:  "recipe_ingredients",
		joinColumn: "ingredient_id",
		opPrefix:   "ingredients",
	}
}

func (r *AttrsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {

		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// ListByUser returns the caller's attributes sorted by name descending.
// With assignedOnly set, only attributes attached to at least one
// recipe come back.
func (r *AttrsRepo) ListByUser(ctx context.Context, userID string, assignedOnly bool) (attrs []recipe.Attribute, err error) {
	query := fmt.Sprintf(`SELECT id, user_id, name FROM %s WHERE user_id = $1`, r.table)

	if assignedOnly {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s j WHERE j.%s = %s.id)`, r.joinTable, r.joinColumn, r.table)
	}

	query += ` ORDER BY name DESC, id ASC`

	var rows pgx.Rows

	err = r.observe(r.opPrefix+".list_by_user", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, userID)
		return qerr
	})

	if err != nil {
		return
	}

	defer rows.Close()

	attrs = make([]recipe.Attribute, 0)

	for rows.Next() {
		var a recipe.Attribute

		e := rows.Scan(&a.ID, &a.UserID, &a.Name)

		if e != nil {
			err = e
			return
		}
		attrs = append(attrs, a)
	}

	err = rows.Err()

	return
}

func (r *AttrsRepo) Update(ctx context.Context, userID, id, name string) (recipe.Attribute, error) {
	var a recipe.Attribute

	query := fmt.Sprintf(`UPDATE %s SET name = $3 WHERE id = $1 AND user_id = $2 RETURNING id, user_id, name`, r.table)

	err := r.observe(r.opPrefix+".update", func() error {
		return r.pool.QueryRow(ctx, query, id, userID, name).Scan(&a.ID, &a.UserID, &a.Name)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return recipe.Attribute{}, recipe.ErrAttributeNotFound
		}

		return recipe.Attribute{}, err
	}

	return a, nil
}

// Delete also drops the recipe associations via ON DELETE CASCADE.
func (r *AttrsRepo) Delete(ctx context.Context, userID, id string) (err error) {
	var tag pgconn.CommandTag

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.table)

	err = r.observe(r.opPrefix+".delete", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, query, id, userID)

		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = recipe.ErrAttributeNotFound

		return
	}

	return
}

// getOrCreateTx matches an attribute by name within the owner's rows,
// inserting one when nothing matches. Runs inside the caller's
// transaction so recipe writes and their associations commit together.
// There is no unique constraint backing this: two concurrent calls can
// both insert, which the API tolerates.
func (r *AttrsRepo) getOrCreateTx(ctx context.Context, tx pgx.Tx, userID, name string) (recipe.Attribute, error) {
	var a recipe.Attribute

	selectQuery := fmt.Sprintf(`SELECT id, user_id, name FROM %s WHERE user_id = $1 AND name = $2 ORDER BY id ASC LIMIT 1`, r.table)

	err := r.observe(r.opPrefix+".get_or_create.select", func() error {
		return tx.QueryRow(ctx, selectQuery, userID, name).Scan(&a.ID, &a.UserID, &a.Name)
	})

	if err == nil {
		return a, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return recipe.Attribute{}, err
	}

	a = recipe.Attribute{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (id, user_id, name) VALUES ($1,$2,$3)`, r.table)

	err = r.observe(r.opPrefix+".get_or_create.insert", func() error {
		_, e := tx.Exec(ctx, insertQuery, a.ID, a.UserID, a.Name)
		return e
	})

	if err != nil {
		return recipe.Attribute{}, err
	}

	return a, nil
}
