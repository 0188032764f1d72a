// Package storage persists uploaded recipe images behind a small
// interface with a local filesystem backend and a MinIO backend.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ImageStore saves, removes and resolves public URLs for image objects
// addressed by a relative path like "uploads/recipe/<uuid>.jpg".
type ImageStore interface {
	Save(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectPath string) error
	URL(objectPath string) string
}

// RecipeImagePath builds the object path for an upload. The client's
// filename contributes only its extension, lowercased; the basename is
// a fresh UUID so uploads never collide or leak the original name.
func RecipeImagePath(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return "uploads/recipe/" + uuid.NewString() + ext
}
