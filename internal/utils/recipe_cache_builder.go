package utils

import (
	"strconv"
	"strings"
)

// RecipesListCachePrefix is the shared prefix of every cached listing
// page for one owner; invalidation clears by this prefix.
func RecipesListCachePrefix(userID string) string {
	return "recipes:list:v1:user=" + userID + ":"
}

// BuildRecipesListCacheKey keys a cached listing page by everything
// that shapes it, the owner included, so users never see each other's
// pages.
func BuildRecipesListCacheKey(userID string, limit int, cursor string, tagIDs, ingredientIDs []string) string {
	return RecipesListCachePrefix(userID) +
		"limit=" + strconv.Itoa(limit) +
		":cursor=" + cursor +
		":tags=" + strings.Join(tagIDs, ",") +
		":ingredients=" + strings.Join(ingredientIDs, ",")
}

// AttrsListCachePrefix is the per-owner prefix for a tag or ingredient
// listing. kind is the collection name, e.g. "tags".
func AttrsListCachePrefix(kind, userID string) string {
	return kind + ":list:v1:user=" + userID + ":"
}

// BuildAttrsListCacheKey keys a cached tag or ingredient listing.
func BuildAttrsListCacheKey(kind, userID string, assignedOnly bool) string {
	return AttrsListCachePrefix(kind, userID) + "assigned=" + strconv.FormatBool(assignedOnly)
}
