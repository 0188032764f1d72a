package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/bitekeeper/recipebox/internal/http/middlewares"
	"github.com/bitekeeper/recipebox/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

type UserService interface {
	Create(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	Authenticate(ctx context.Context, email, password string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, email, name, password *string) (user.User, error)
}

type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type UsersHandler struct {
	users  UserService
	tokens TokenIssuer
}

func NewUsersHandler(users UserService, tokens TokenIssuer) *UsersHandler {
	return &UsersHandler{users: users, tokens: tokens}
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := h.users.Create(cctx, req)

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondBadRequest(ctx, "A user with this email already exists.", gin.H{"field": "email"})
		case errors.Is(err, user.ErrEmailRequired):
			RespondBadRequest(ctx, "Email is required.", gin.H{"field": "email"})
		default:
			RespondInternal(ctx, "Could not create user")
			fmt.Println(err)
		}
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) ObtainToken(ctx *gin.Context) {
	var req user.ObtainTokenRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.Authenticate(cctx, req.Email, req.Password)

	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Unable to authenticate with provided credentials.")
			return
		}

		RespondInternal(ctx, "Could not obtain token")
		return
	}

	token, err := h.tokens.Issue(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *UsersHandler) RevokeToken(ctx *gin.Context) {
	raw, ok := middlewares.AuthTokenFromContext(ctx)

	if !ok || raw == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.tokens.Revoke(cctx, raw); err != nil {
		RespondInternal(ctx, "Could not revoke token")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not fetch profile")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req user.UpdateMeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var password *string

	if req.Password != "" {
		password = &req.Password
	}

	u, err := h.users.UpdateProfile(cctx, userID, &req.Email, &req.Name, password)

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondBadRequest(ctx, "Email is already in use.", gin.H{"field": "email"})
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) PatchMe(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req user.PatchMeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, userID, req.Email, req.Name, req.Password)

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondBadRequest(ctx, "Email is already in use.", gin.H{"field": "email"})
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}
