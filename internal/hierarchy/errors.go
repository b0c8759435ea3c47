package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBrokenHierarchy is returned when parent links form a cycle.
	ErrBrokenHierarchy = errors.New("broken hierarchy")

	// ErrDuplicateNewID is returned if two nodes would share a qualified id.
	ErrDuplicateNewID = errors.New("duplicate new id")
)

// CycleError names the nodes whose parent links loop back on themselves.
type CycleError struct {
	// Members are old ids in walk order, starting at the first repeated node.
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: parent cycle %s -> %s", ErrBrokenHierarchy,
		strings.Join(e.Members, " -> "), e.Members[0])
}

func (e *CycleError) Unwrap() error {
	return ErrBrokenHierarchy
}
