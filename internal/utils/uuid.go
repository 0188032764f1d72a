package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path parameters are
// checked before hitting the database so garbage ids short-circuit
// into a 404.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
