package domain

import "github.com/google/uuid"

// ValidID reports whether id has the shape of a row identifier. Lookups use
// it to answer NotFound for ids no row could ever carry.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// InvalidID returns the first id that is not a valid identifier, or "".
func InvalidID(ids []string) string {
	for _, id := range ids {
		if !ValidID(id) {
			return id
		}
	}
	return ""
}
