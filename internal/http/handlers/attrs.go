package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bitekeeper/recipebox/internal/cache"
	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/domain/recipe"
	"github.com/bitekeeper/recipebox/internal/http/middlewares"
	"github.com/bitekeeper/recipebox/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttrsStore interface {
	ListByUser(ctx context.Context, userID string, assignedOnly bool) ([]recipe.Attribute, error)
	Update(ctx context.Context, userID, id, name string) (recipe.Attribute, error)
	Delete(ctx context.Context, userID, id string) error
}

// AttrsHandler serves both tag and ingredient collections; the two
// differ only in name.
type AttrsHandler struct {
	kind  string // cache key segment, "tags" or "ingredients"
	label string // human name for messages, "Tag" or "Ingredient"
	repo  AttrsStore
	cache *cache.Cache
}

func NewTagsHandler(repo AttrsStore) *AttrsHandler {
	return &AttrsHandler{kind: "tags", label: "Tag", repo: repo}
}

func NewTagsHandlerWithCache(repo AttrsStore, c *cache.Cache) *AttrsHandler {
	h := NewTagsHandler(repo)
	h.cache = c
	return h
}

func NewIngredientsHandler(repo AttrsStore) *AttrsHandler {
	return &AttrsHandler{kind: "ingredients", label: "Ingredient", repo: repo}
}

func NewIngredientsHandlerWithCache(repo AttrsStore, c *cache.Cache) *AttrsHandler {
	h := NewIngredientsHandler(repo)
	h.cache = c
	return h
}

func (h *AttrsHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	assignedOnly := ctx.Query("assigned_only") == "1"

	cacheKey := utils.BuildAttrsListCacheKey(h.kind, userID, assignedOnly)

	if h.cache != nil {
		if v, found := h.cache.Get(cacheKey); found {
			RespondJSONWithETag(ctx, http.StatusOK, v)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	attrs, err := h.repo.ListByUser(cctx, userID, assignedOnly)

	if err != nil {
		RespondInternal(ctx, "Could not list "+h.kind)
		fmt.Println(err)
		return
	}

	payload := gin.H{
		"items": attrs,
		"count": len(attrs),
	}

	if h.cache != nil {
		h.cache.Set(cacheKey, payload)
	}

	RespondJSONWithETag(ctx, http.StatusOK, payload)
}

func (h *AttrsHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "id must be a valid UUID", nil)
		return
	}

	var req recipe.AttributeInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	attr, err := h.repo.Update(cctx, userID, id, req.Name)

	if err != nil {
		if errors.Is(err, recipe.ErrAttributeNotFound) {
			RespondNotFound(ctx, h.label+" not found")
			return
		}

		RespondInternal(ctx, "Could not update "+h.kind)
		return
	}

	h.invalidateListCaches(userID)

	ctx.JSON(http.StatusOK, attr)
}

func (h *AttrsHandler) Delete(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, userID, id)

	if err != nil {
		if errors.Is(err, recipe.ErrAttributeNotFound) {
			RespondNotFound(ctx, h.label+" not found")
			return
		}

		RespondInternal(ctx, "Could not delete "+h.kind)
		return
	}

	h.invalidateListCaches(userID)

	ctx.Status(http.StatusNoContent)
}

// Renaming or deleting an attribute also changes the copies embedded
// in recipe listings, so both caches go.
func (h *AttrsHandler) invalidateListCaches(userID string) {
	if h.cache == nil {
		return
	}

	h.cache.ClearPrefix(utils.AttrsListCachePrefix(h.kind, userID))
	h.cache.ClearPrefix(utils.RecipesListCachePrefix(userID))
}
