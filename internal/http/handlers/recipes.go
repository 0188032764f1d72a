package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bitekeeper/recipebox/internal/cache"
	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/domain/recipe"
	"github.com/bitekeeper/recipebox/internal/http/middlewares"
	"github.com/bitekeeper/recipebox/internal/storage"
	"github.com/bitekeeper/recipebox/internal/utils"
	"github.com/gin-gonic/gin"
)

type RecipesStore interface {
	Create(ctx context.Context, userID string, req recipe.CreateRecipeRequest) (recipe.Recipe, error)
	GetByID(ctx context.Context, userID, id string) (recipe.Recipe, error)
	ListCursor(ctx context.Context, userID string, filter recipe.ListFilter, limit int, afterCreatedAt time.Time, afterID string) ([]recipe.Recipe, *string, bool, error)
	Update(ctx context.Context, userID, id string, req recipe.UpdateRecipeRequest) (recipe.Recipe, error)
	Patch(ctx context.Context, userID, id string, req recipe.PatchRecipeRequest) (recipe.Recipe, error)
	Delete(ctx context.Context, userID, id string) error
	SetImagePath(ctx context.Context, userID, id, path string) (*string, error)
}

// First page of a newest-first walk: every real row sorts strictly
// below this pair.
var listStartCreatedAt = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

const listStartID = "ffffffff-ffff-ffff-ffff-ffffffffffff"

type RecipesHandler struct {
	repo   RecipesStore
	images storage.ImageStore
	cache  *cache.Cache
}

func NewRecipesHandler(repo RecipesStore, images storage.ImageStore) *RecipesHandler {
	return &RecipesHandler{repo: repo, images: images}
}

func NewRecipesHandlerWithCache(repo RecipesStore, images storage.ImageStore, c *cache.Cache) *RecipesHandler {
	return &RecipesHandler{repo: repo, images: images, cache: c}
}

func (h *RecipesHandler) CreateRecipe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req recipe.CreateRecipeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := recipe.ValidatePrice(req.Price); err != nil {
		RespondBadRequest(ctx, "price must be a non-negative amount below 1000 with at most two decimals", gin.H{"field": "price"})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	rec, err := h.repo.Create(cctx, userID, req)

	if err != nil {
		RespondInternal(ctx, "Could not create recipe")
		fmt.Println(err)
		return
	}

	h.invalidateListCaches(userID)

	ctx.JSON(http.StatusCreated, recipe.NewDetail(rec, h.imageURL(rec)))
}

func (h *RecipesHandler) ListRecipes(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	limit := 20

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be an integer between 1 and 100", nil)
			return
		}

		limit = n
	}

	cursor := ctx.Query("cursor")

	afterCreatedAt := listStartCreatedAt
	afterID := listStartID

	if cursor != "" {
		cur, err := utils.DecodeRecipeCursor(cursor)

		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}

		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	tagIDs, ok := parseIDFilter(ctx.Query("tags"))

	if !ok {
		RespondBadRequest(ctx, "tags must be a comma separated list of tag ids", nil)
		return
	}

	ingredientIDs, ok := parseIDFilter(ctx.Query("ingredients"))

	if !ok {
		RespondBadRequest(ctx, "ingredients must be a comma separated list of ingredient ids", nil)
		return
	}

	filter := recipe.ListFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	}

	cacheKey := utils.BuildRecipesListCacheKey(userID, limit, cursor, tagIDs, ingredientIDs)

	if h.cache != nil {
		if v, found := h.cache.Get(cacheKey); found {
			RespondJSONWithETag(ctx, http.StatusOK, v)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	recipes, nextCursor, hasMore, err := h.repo.ListCursor(cctx, userID, filter, limit, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list recipes")
		fmt.Println(err)
		return
	}

	items := make([]recipe.Summary, 0, len(recipes))

	for _, rec := range recipes {
		items = append(items, recipe.NewSummary(rec))
	}

	payload := gin.H{
		"items":      items,
		"count":      len(items),
		"nextCursor": nextCursor,
		"hasMore":    hasMore,
	}

	if h.cache != nil {
		h.cache.Set(cacheKey, payload)
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *RecipesHandler) GetRecipeByID(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "recipe id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	rec, err := h.repo.GetByID(cctx, userID, id)

	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not fetch recipe")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, recipe.NewDetail(rec, h.imageURL(rec)))
}

func (h *RecipesHandler) UpdateRecipe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "recipe id must be a valid UUID", nil)
		return
	}

	var req recipe.UpdateRecipeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := recipe.ValidatePrice(req.Price); err != nil {
		RespondBadRequest(ctx, "price must be a non-negative amount below 1000 with at most two decimals", gin.H{"field": "price"})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rec, err := h.repo.Update(cctx, userID, id, req)

	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not update recipe")
		fmt.Println(err)
		return
	}

	h.invalidateListCaches(userID)

	ctx.JSON(http.StatusOK, recipe.NewDetail(rec, h.imageURL(rec)))
}

func (h *RecipesHandler) PatchRecipe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "recipe id must be a valid UUID", nil)
		return
	}

	var req recipe.PatchRecipeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Price != nil {
		if err := recipe.ValidatePrice(*req.Price); err != nil {
			RespondBadRequest(ctx, "price must be a non-negative amount below 1000 with at most two decimals", gin.H{"field": "price"})
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rec, err := h.repo.Patch(cctx, userID, id, req)

	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not update recipe")
		fmt.Println(err)
		return
	}

	h.invalidateListCaches(userID)

	ctx.JSON(http.StatusOK, recipe.NewDetail(rec, h.imageURL(rec)))
}

func (h *RecipesHandler) DeleteRecipe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "recipe id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	// Load first so a stored image can be removed after the row goes.
	rec, err := h.repo.GetByID(cctx, userID, id)

	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not delete recipe")
		return
	}

	err = h.repo.Delete(cctx, userID, id)

	if err != nil {
		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not delete recipe")
		return
	}

	if rec.ImagePath != nil && h.images != nil {
		// best effort, the row is already gone
		_ = h.images.Delete(cctx, *rec.ImagePath)
	}

	h.invalidateListCaches(userID)

	ctx.Status(http.StatusNoContent)
}

func (h *RecipesHandler) UploadImage(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "recipe id must be a valid UUID", nil)
		return
	}

	fileHeader, err := ctx.FormFile("image")

	if err != nil {
		RespondBadRequest(ctx, "image file is required", nil)
		return
	}

	ext := strings.ToLower(path.Ext(fileHeader.Filename))

	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		RespondBadRequest(ctx, "unsupported image type", gin.H{"field": "image"})
		return
	}

	f, err := fileHeader.Open()

	if err != nil {
		RespondInternal(ctx, "Could not read upload")
		return
	}

	defer f.Close()

	objectPath := storage.RecipeImagePath(fileHeader.Filename)

	cctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	err = h.images.Save(cctx, objectPath, f, fileHeader.Size, fileHeader.Header.Get("Content-Type"))

	if err != nil {
		RespondInternal(ctx, "Could not store image")
		fmt.Println(err)
		return
	}

	old, err := h.repo.SetImagePath(cctx, userID, id, objectPath)

	if err != nil {
		// the row never pointed at the new object, drop it again
		_ = h.images.Delete(cctx, objectPath)

		if errors.Is(err, recipe.ErrNotFound) {
			RespondNotFound(ctx, "Recipe not found")
			return
		}

		RespondInternal(ctx, "Could not store image")
		return
	}

	if old != nil && *old != objectPath {
		// best effort, the replaced object is orphaned otherwise
		_ = h.images.Delete(cctx, *old)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":    id,
		"image": h.images.URL(objectPath),
	})
}

func (h *RecipesHandler) imageURL(rec recipe.Recipe) *string {
	if rec.ImagePath == nil || h.images == nil {
		return nil
	}

	u := h.images.URL(*rec.ImagePath)

	return &u
}

// Recipe listings, tag listings and ingredient listings all shift when
// a recipe changes, so one write clears all three for the owner.
func (h *RecipesHandler) invalidateListCaches(userID string) {
	if h.cache == nil {
		return
	}

	h.cache.ClearPrefix(utils.RecipesListCachePrefix(userID))
	h.cache.ClearPrefix(utils.AttrsListCachePrefix("tags", userID))
	h.cache.ClearPrefix(utils.AttrsListCachePrefix("ingredients", userID))
}

func parseIDFilter(raw string) ([]string, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		s := strings.TrimSpace(p)

		if s == "" {
			continue
		}

		if !utils.IsUUID(s) {
			return nil, false
		}

		out = append(out, s)
	}

	return out, true
}
