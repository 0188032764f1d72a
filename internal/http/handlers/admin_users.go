package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminUsersStore interface {
	ListCursor(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.User, *string, bool, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	AdminPatch(ctx context.Context, id string, req user.AdminPatchUserRequest) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

type AdminUsersHandler struct {
	repo   AdminUsersStore
	tokens TokenRevoker
}

func NewAdminUsersHandler(repo AdminUsersStore, tokens TokenRevoker) *AdminUsersHandler {
	return &AdminUsersHandler{repo: repo, tokens: tokens}
}

func (h *AdminUsersHandler) ListUsers(ctx *gin.Context) {
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
		cur, err := utils.DecodeUserCursor(cursor)

		if err != nil {
			RespondBadRequest(ctx, "invalid cursor", nil)
			return
		}

		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, nextCursor, hasMore, err := h.repo.ListCursor(cctx, limit, afterCreatedAt, afterID)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		fmt.Println(err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items":      items,
		"count":      len(items),
		"nextCursor": nextCursor,
		"hasMore":    hasMore,
	})
}

func (h *AdminUsersHandler) GetUserByID(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not fetch user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *AdminUsersHandler) PatchUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	var req user.AdminPatchUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.repo.AdminPatch(cctx, id, req)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update user")
		fmt.Println(err)
		return
	}

	// A deactivated account must not keep working sessions.
	if req.IsActive != nil && !*req.IsActive {
		if err := h.tokens.RevokeAllForUser(cctx, id); err != nil {
			RespondInternal(ctx, "Could not revoke sessions")
			fmt.Println(err)
			return
		}
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AdminUsersHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// Sessions first: cached token entries outlive the rows otherwise.
	if err := h.tokens.RevokeAllForUser(cctx, id); err != nil {
		RespondInternal(ctx, "Could not delete user")
		fmt.Println(err)
		return
	}

	err := h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not delete user")
		return
	}

	ctx.Status(http.StatusNoContent)
}
