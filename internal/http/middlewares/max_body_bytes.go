package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps how much of a request body handlers will read.
// Mounted twice: a wide bound sized for image uploads at the router
// root and a tight one on the JSON groups. Reads past the cap surface
// inside the handler's bind as a request-too-large error.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)

		ctx.Next()
	}
}
