package recipe

import (
	"time"

	"github.com/google/uuid"
)

// NewFromCreateRequest builds a Recipe owned by userID. Associations
// are resolved later, when the repository matches the nested names
// against the owner's existing attributes.
func NewFromCreateRequest(userID string, req CreateRecipeRequest) Recipe {
	now := time.Now().UTC()
	return Recipe{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Link:        req.Link,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
