package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag writes the payload with a content-derived ETag
// and collapses the response to a 304 when the client already holds
// the current version. The ETag header rides along on the 304 too.
// Everything served this way is per-account data, so shared caches are
// told to stay out of it.
func RespondJSONWithETag(ctx *gin.Context, status int, payload interface{}) {
	etag, err := payloadETag(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "private, no-cache")

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, payload)
}

// payloadETag hashes the JSON encoding, so equal payloads produce
// equal tags across processes.
func payloadETag(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)

	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

func etagMatches(ifNoneMatch, current string) bool {
	if strings.TrimSpace(ifNoneMatch) == "" || strings.TrimSpace(current) == "" {
		return false
	}

	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	want := trimETag(current)

	// the header may carry a comma separated candidate list
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if trimETag(candidate) == want {
			return true
		}
	}

	return false
}

// trimETag strips whitespace and the weak validator marker, comparing
// W/"abc" and "abc" as the same version.
func trimETag(raw string) string {
	v := strings.TrimSpace(raw)

	if strings.HasPrefix(v, "W/") {
		v = strings.TrimSpace(strings.TrimPrefix(v, "W/"))
	}

	return v
}
