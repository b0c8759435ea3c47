package corpus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoID marks a document whose metadata has no id field.
	ErrNoID = errors.New("metadata has no id field")

	// ErrUnsafeID marks an id that cannot be used as a path segment.
	ErrUnsafeID = errors.New("id is not usable in a path")

	// ErrDuplicateID marks two or more documents claiming the same id.
	ErrDuplicateID = errors.New("duplicate document id")
)

// Conflict lists every document that claims one id.
type Conflict struct {
	ID    string
	Paths []string
}

// ConflictError reports all duplicate ids found in one load.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("%s claimed by %s", c.ID, strings.Join(c.Paths, ", "))
	}
	return fmt.Sprintf("%d duplicate document id(s): %s", len(e.Conflicts), strings.Join(parts, "; "))
}

func (e *ConflictError) Unwrap() error {
	return ErrDuplicateID
}
