package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/bitekeeper/recipebox/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (user.User, error)
}

type AuthMiddleware struct {
	tokens TokenResolver
}

func NewAuthMiddleware(tokens TokenResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

const (
	ctxUserIDKey      = "auth.userID"
	ctxEmailKey       = "auth.email"
	ctxIsStaffKey     = "auth.isStaff"
	ctxIsSuperuserKey = "auth.isSuperuser"
	ctxTokenKey       = "auth.token"
)

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromHeader(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		u, err := m.tokens.Resolve(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		// Stash useful bits of identity on the context
		c.Set(ctxUserIDKey, u.ID)
		c.Set(ctxEmailKey, u.Email)
		c.Set(ctxIsStaffKey, u.IsStaff)
		c.Set(ctxIsSuperuserKey, u.IsSuperuser)
		c.Set(ctxTokenKey, raw)

		c.Next()
	}
}

// tokenFromHeader pulls the raw key out of an Authorization header.
// Both "Token <key>" and "Bearer <key>" schemes are accepted.
func tokenFromHeader(header string) string {
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(header, scheme))
		}
	}
	return ""
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func IsStaffFromContext(c *gin.Context) bool {
	v, ok := c.Get(ctxIsStaffKey)
	if !ok {
		return false
	}
	isStaff, ok := v.(bool)
	return ok && isStaff
}

func IsSuperuserFromContext(c *gin.Context) bool {
	v, ok := c.Get(ctxIsSuperuserKey)
	if !ok {
		return false
	}
	isSuper, ok := v.(bool)
	return ok && isSuper
}

func AuthTokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return "", false
	}
	tok, ok := v.(string)
	return tok, ok
}
