package repository

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned (wrapped) by every repository. Match with errors.Is.
var (
	// ErrNotFound: the referenced user, group or assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness or duplicate-assignment rule would be violated.
	ErrConflict = errors.New("conflict")
)

// EntityError names the entity and key a NotFound or Conflict refers to.
type EntityError struct {
	Kind   error
	Entity string
	Key    string
}

func (e *EntityError) Error() string {
	switch e.Kind {
	case ErrNotFound:
		return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
	case ErrConflict:
		return fmt.Sprintf("%s %s already exists", e.Entity, e.Key)
	default:
		return fmt.Sprintf("%s %s: %v", e.Entity, e.Key, e.Kind)
	}
}

func (e *EntityError) Unwrap() error {
	return e.Kind
}

func notFound(entity, key string) error {
	return &EntityError{Kind: ErrNotFound, Entity: entity, Key: key}
}

func conflict(entity, key string) error {
	return &EntityError{Kind: ErrConflict, Entity: entity, Key: key}
}

// isDuplicateKeyError matches unique violations from PostgreSQL and SQLite.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "23505")
}
