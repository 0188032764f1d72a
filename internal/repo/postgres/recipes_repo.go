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

	"github.com/bitekeeper/recipebox/internal/domain/recipe"
	"github.com/bitekeeper/recipebox/internal/observability"
	"github.com/bitekeeper/recipebox/internal/utils"
)

const recipeColumns = `id, user_id, title, description, time_minutes, price, link, image_path, created_at, updated_at`

// querier is satisfied by both the pool and a transaction, so the
// association loader can run inside or outside one.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type RecipesRepo struct {
	pool        *pgxpool.Pool
	prom        *observability.Prom
	tags        *AttrsRepo
	ingredients *AttrsRepo
}

func NewRecipesRepo(pool *pgxpool.Pool, prom *observability.Prom, tags, ingredients *AttrsRepo) *RecipesRepo {
	return &RecipesRepo{
		pool:        pool,
		prom:        prom,
		tags:        tags,
		ingredients: ingredients,
	}
}

func (r *RecipesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {

		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanRecipe(row pgx.Row) (recipe.Recipe, error) {
	var rec recipe.Recipe

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Title,
		&rec.Description,
		&rec.TimeMinutes,
		&rec.Price,
		&rec.Link,
		&rec.ImagePath,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	return rec, err
}

// Create inserts the recipe and resolves its nested tags and
// ingredients in one transaction.
func (r *RecipesRepo) Create(ctx context.Context, userID string, req recipe.CreateRecipeRequest) (rec recipe.Recipe, err error) {
	rec = recipe.NewFromCreateRequest(userID, req)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("recipes.create.insert", func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO recipes (id, user_id, title, description, time_minutes, price, link, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`,
			rec.ID, rec.UserID, rec.Title, rec.Description, rec.TimeMinutes, rec.Price, rec.Link, rec.CreatedAt, rec.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return
	}

	rec.Tags, err = r.replaceAttrsTx(ctx, tx, r.tags, rec.ID, userID, req.Tags)

	if err != nil {
		return
	}

	rec.Ingredients, err = r.replaceAttrsTx(ctx, tx, r.ingredients, rec.ID, userID, req.Ingredients)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// GetByID is owner scoped: another user's recipe behaves exactly like
// a missing one.
func (r *RecipesRepo) GetByID(ctx context.Context, userID, id string) (recipe.Recipe, error) {
	var rec recipe.Recipe

	err := r.observe("recipes.get_by_id", func() error {
		var e error
		rec, e = scanRecipe(r.pool.QueryRow(ctx,
			`SELECT `+recipeColumns+` FROM recipes WHERE id = $1 AND user_id = $2`,
			id, userID,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return recipe.Recipe{}, recipe.ErrNotFound
		}

		return recipe.Recipe{}, err
	}

	rec.Tags, err = r.loadAttrsFor(ctx, r.pool, r.tags, rec.ID)

	if err != nil {
		return recipe.Recipe{}, err
	}

	rec.Ingredients, err = r.loadAttrsFor(ctx, r.pool, r.ingredients, rec.ID)

	if err != nil {
		return recipe.Recipe{}, err
	}

	return rec, nil
}

// ListCursor pages the caller's recipes newest first. Tag and
// ingredient filters keep recipes carrying any of the given ids.
func (r *RecipesRepo) ListCursor(
	ctx context.Context,
	userID string,
	filter recipe.ListFilter,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []recipe.Recipe, nextCursor *string, hasMore bool, err error) {
	op := "recipes.list_cursor"

	conds := []string{"user_id = $1", "(created_at, id) < ($2, $3)"}
	args := []interface{}{userID, afterCreatedAt, afterID}

	argsPosition := 4

	if len(filter.TagIDs) > 0 {
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM recipe_tags j WHERE j.recipe_id = recipes.id AND j.tag_id = ANY($%d))", argsPosition))
		args = append(args, filter.TagIDs)
		argsPosition++
	}

	if len(filter.IngredientIDs) > 0 {
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM recipe_ingredients j WHERE j.recipe_id = recipes.id AND j.ingredient_id = ANY($%d))", argsPosition))
		args = append(args, filter.IngredientIDs)
		argsPosition++
	}

	query := `SELECT ` + recipeColumns + `
		FROM recipes
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + fmt.Sprint(argsPosition)

	args = append(args, limit+1)

	var rows pgx.Rows
	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]recipe.Recipe, 0, limit)

	for rows.Next() {
		rec, scanErr := scanRecipe(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeRecipeCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	if err := r.attachAttrs(ctx, r.pool, out); err != nil {
		return nil, nil, false, err
	}

	return out, nextCursor, hasMore, nil
}

// Update replaces every scalar field. Associations are replaced only
// when the request carries the matching key: a nil slice means the key
// was absent and the current set stays.
func (r *RecipesRepo) Update(ctx context.Context, userID, id string, req recipe.UpdateRecipeRequest) (rec recipe.Recipe, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("recipes.update", func() error {
		var e error
		rec, e = scanRecipe(tx.QueryRow(ctx,
			`UPDATE recipes
				SET title = $3,
						description = $4,
						time_minutes = $5,
						price = $6,
						link = $7,
						updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+recipeColumns,
			id, userID, req.Title, req.Description, req.TimeMinutes, req.Price, req.Link,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = recipe.ErrNotFound
		}

		return
	}

	rec, err = r.applyAttrsTx(ctx, tx, rec, userID, req.Tags, req.Ingredients)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// Patch updates only the fields present in the payload.
func (r *RecipesRepo) Patch(ctx context.Context, userID, id string, req recipe.PatchRecipeRequest) (rec recipe.Recipe, err error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id, userID}

	argsPosition := 3

	if req.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argsPosition))
		args = append(args, *req.Title)
		argsPosition++
	}

	if req.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argsPosition))
		args = append(args, *req.Description)
		argsPosition++
	}

	if req.TimeMinutes != nil {
		sets = append(sets, fmt.Sprintf("time_minutes = $%d", argsPosition))
		args = append(args, *req.TimeMinutes)
		argsPosition++
	}

	if req.Price != nil {
		sets = append(sets, fmt.Sprintf("price = $%d", argsPosition))
		args = append(args, *req.Price)
		argsPosition++
	}

	if req.Link != nil {
		sets = append(sets, fmt.Sprintf("link = $%d", argsPosition))
		args = append(args, *req.Link)
		argsPosition++
	}

	query := `UPDATE recipes SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND user_id = $2 RETURNING ` + recipeColumns

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("recipes.patch", func() error {
		var e error
		rec, e = scanRecipe(tx.QueryRow(ctx, query, args...))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = recipe.ErrNotFound
		}

		return
	}

	rec, err = r.applyAttrsTx(ctx, tx, rec, userID, req.Tags, req.Ingredients)

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

func (r *RecipesRepo) Delete(ctx context.Context, userID, id string) (err error) {
	var tag pgconn.CommandTag
	op := "recipes.delete"

	err = r.observe(op, func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1 AND user_id = $2`, id, userID)

		return e
	})

	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = recipe.ErrNotFound

		return
	}

	return
}

// SetImagePath swaps the stored image path and hands back the previous
// one so the caller can drop the replaced object.
func (r *RecipesRepo) SetImagePath(ctx context.Context, userID, id, path string) (old *string, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("recipes.set_image_path.lock", func() error {
		return tx.QueryRow(ctx,
			`SELECT image_path FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, userID,
		).Scan(&old)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = recipe.ErrNotFound
		}

		return
	}

	err = r.observe("recipes.set_image_path.update", func() error {
		_, e := tx.Exec(ctx,
			`UPDATE recipes SET image_path = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
			id, userID, path,
		)
		return e
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// applyAttrsTx replaces associations for the keys present in a write
// request and loads the current set for the absent ones.
func (r *RecipesRepo) applyAttrsTx(ctx context.Context, tx pgx.Tx, rec recipe.Recipe, userID string, tags, ingredients []recipe.AttributeInput) (recipe.Recipe, error) {
	var err error

	if tags != nil {
		rec.Tags, err = r.replaceAttrsTx(ctx, tx, r.tags, rec.ID, userID, tags)
	} else {
		rec.Tags, err = r.loadAttrsFor(ctx, tx, r.tags, rec.ID)
	}

	if err != nil {
		return recipe.Recipe{}, err
	}

	if ingredients != nil {
		rec.Ingredients, err = r.replaceAttrsTx(ctx, tx, r.ingredients, rec.ID, userID, ingredients)
	} else {
		rec.Ingredients, err = r.loadAttrsFor(ctx, tx, r.ingredients, rec.ID)
	}

	if err != nil {
		return recipe.Recipe{}, err
	}

	return rec, nil
}

// replaceAttrsTx clears the join rows and reattaches the requested
// names, creating missing attributes on the way. Duplicate names in
// the payload collapse to one association.
func (r *RecipesRepo) replaceAttrsTx(ctx context.Context, tx pgx.Tx, attrs *AttrsRepo, recipeID, userID string, inputs []recipe.AttributeInput) ([]recipe.Attribute, error) {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, attrs.joinTable)

	err := r.observe(attrs.opPrefix+".replace.clear", func() error {
		_, e := tx.Exec(ctx, deleteQuery, recipeID)
		return e
	})

	if err != nil {
		return nil, err
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (recipe_id, %s) VALUES ($1,$2) ON CONFLICT DO NOTHING`, attrs.joinTable, attrs.joinColumn)

	out := make([]recipe.Attribute, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))

	for _, in := range inputs {
		a, err := attrs.getOrCreateTx(ctx, tx, userID, in.Name)

		if err != nil {
			return nil, err
		}

		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true

		err = r.observe(attrs.opPrefix+".replace.attach", func() error {
			_, e := tx.Exec(ctx, insertQuery, recipeID, a.ID)
			return e
		})

		if err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, nil
}

// loadAttrsFor fetches one recipe's attributes inside a transaction.
func (r *RecipesRepo) loadAttrsFor(ctx context.Context, q querier, attrs *AttrsRepo, recipeID string) ([]recipe.Attribute, error) {
	byRecipe, err := r.loadAttrsMap(ctx, q, attrs, []string{recipeID})

	if err != nil {
		return nil, err
	}

	out := byRecipe[recipeID]
	if out == nil {
		out = []recipe.Attribute{}
	}

	return out, nil
}

// attachAttrs bulk loads tags and ingredients for a page of recipes in
// two queries instead of two per row.
func (r *RecipesRepo) attachAttrs(ctx context.Context, q querier, items []recipe.Recipe) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, rec := range items {
		ids = append(ids, rec.ID)
	}

	tagsByRecipe, err := r.loadAttrsMap(ctx, q, r.tags, ids)

	if err != nil {
		return err
	}

	ingredientsByRecipe, err := r.loadAttrsMap(ctx, q, r.ingredients, ids)

	if err != nil {
		return err
	}

	for i := range items {
		items[i].Tags = orEmpty(tagsByRecipe[items[i].ID])
		items[i].Ingredients = orEmpty(ingredientsByRecipe[items[i].ID])
	}

	return nil
}

func orEmpty(attrs []recipe.Attribute) []recipe.Attribute {
	if attrs == nil {
		return []recipe.Attribute{}
	}
	return attrs
}

func (r *RecipesRepo) loadAttrsMap(ctx context.Context, q querier, attrs *AttrsRepo, recipeIDs []string) (map[string][]recipe.Attribute, error) {
	query := fmt.Sprintf(`
		SELECT j.recipe_id, a.id, a.user_id, a.name
		FROM %s j
		JOIN %s a ON a.id = j.%s
		WHERE j.recipe_id = ANY($1)
		ORDER BY a.name ASC, a.id ASC
	`, attrs.joinTable, attrs.table, attrs.joinColumn)

	var rows pgx.Rows

	err := r.observe(attrs.opPrefix+".load_for_recipes", func() error {
		var qerr error
		rows, qerr = q.Query(ctx, query, recipeIDs)
		return qerr
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make(map[string][]recipe.Attribute, len(recipeIDs))

	for rows.Next() {
		var recipeID string
		var a recipe.Attribute

		if err := rows.Scan(&recipeID, &a.ID, &a.UserID, &a.Name); err != nil {
			return nil, err
		}

		out[recipeID] = append(out[recipeID], a)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}
