package bunx

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUIDv7 generates a time-ordered UUIDv7 string for externally visible ids.
//
// Group GUIDs use v7 so that they sort by creation time in both PostgreSQL and
// SQLite without relying on gen_random_uuid(). Panics only if the system
// entropy source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsUUID reports whether s is a UUID of any version in the canonical
// 8-4-4-4-12 hyphenated form. Braced, urn:uuid: and dash-less forms are rejected.
func IsUUID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.String() == strings.ToLower(s)
}
