// Package vcs inspects the version control state around a specs directory.
//
// Both git and jj (Jujutsu) working copies are recognized, including
// colocated repositories where .jj and .git sit side by side. Only read-only
// status queries are issued; the migration never commits on its own.
package vcs

import "time"

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git-only repository
	TypeGit Type = "git"

	// TypeJJ indicates a jj-only repository (non-colocated)
	TypeJJ Type = "jj"

	// TypeColocate indicates a colocated repository (jj + git together)
	TypeColocate Type = "colocate"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// DefaultTimeout bounds every VCS command.
const DefaultTimeout = 30 * time.Second

// StatusCode is a single-letter change kind.
type StatusCode string

const (
	StatusModified  StatusCode = "M"
	StatusAdded     StatusCode = "A"
	StatusDeleted   StatusCode = "D"
	StatusRenamed   StatusCode = "R"
	StatusCopied    StatusCode = "C"
	StatusUntracked StatusCode = "?"
	StatusUnknown   StatusCode = ""
)

// FileStatus is one uncommitted path, relative to the repository root.
type FileStatus struct {
	Path   string
	Status StatusCode
}
