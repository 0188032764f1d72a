package middlewares

// Gin context keys shared between middlewares and handlers. Gin only
// accepts string keys, so these stay untyped constants.
const (
	CtxRequestID = "request_id"
)
