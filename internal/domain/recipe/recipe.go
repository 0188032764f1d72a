package recipe

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("recipe not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrInvalidPrice      = errors.New("price must be a non-negative amount with at most five digits and two decimal places")
)

// Recipe is an owner-scoped dish with nested tags and ingredients.
type Recipe struct {
	ID          string
	UserID      string
	Title       string
	Description string
	TimeMinutes int
	Price       decimal.Decimal
	Link        string
	ImagePath   *string
	Tags        []Attribute
	Ingredients []Attribute
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRecipeRequest is the POST payload. Nested tags and ingredients
// are matched to the caller's existing rows by name or created on the fly.
type CreateRecipeRequest struct {
	Title       string           `json:"title" binding:"required,min=1,max=255"`
	Description string           `json:"description"`
	TimeMinutes int              `json:"timeMinutes" binding:"required,min=1"`
	Price       decimal.Decimal  `json:"price" binding:"required"`
	Link        string           `json:"link" binding:"omitempty,max=255"`
	Tags        []AttributeInput `json:"tags" binding:"omitempty,dive"`
	Ingredients []AttributeInput `json:"ingredients" binding:"omitempty,dive"`
}

// UpdateRecipeRequest replaces every scalar field. Tags and Ingredients
// keep the association semantics of Patch: a missing key leaves the
// current set alone, a present key (even an empty list) replaces it.
type UpdateRecipeRequest struct {
	Title       string           `json:"title" binding:"required,min=1,max=255"`
	Description string           `json:"description"`
	TimeMinutes int              `json:"timeMinutes" binding:"required,min=1"`
	Price       decimal.Decimal  `json:"price" binding:"required"`
	Link        string           `json:"link" binding:"omitempty,max=255"`
	Tags        []AttributeInput `json:"tags" binding:"omitempty,dive"`
	Ingredients []AttributeInput `json:"ingredients" binding:"omitempty,dive"`
}

// PatchRecipeRequest updates only the fields present in the payload.
type PatchRecipeRequest struct {
	Title       *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	TimeMinutes *int             `json:"timeMinutes" binding:"omitempty,min=1"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link" binding:"omitempty,max=255"`
	Tags        []AttributeInput `json:"tags" binding:"omitempty,dive"`
	Ingredients []AttributeInput `json:"ingredients" binding:"omitempty,dive"`
}

// ListFilter narrows a listing to recipes carrying any of the given
// tag or ingredient ids. Empty slices leave the listing unfiltered.
type ListFilter struct {
	TagIDs        []string
	IngredientIDs []string
}

var maxPrice = decimal.NewFromInt(1000)

// ValidatePrice enforces the column shape: numeric(5,2), non-negative.
func ValidatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return ErrInvalidPrice
	}
	if p.Exponent() < -2 {
		return ErrInvalidPrice
	}
	if !p.LessThan(maxPrice) {
		return ErrInvalidPrice
	}
	return nil
}
