package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speclayout/specmigrate/internal/hierarchy"
)

var (
	// ErrBackupFailed means the backup copy could not be completed or verified.
	ErrBackupFailed = errors.New("backup failed")

	// ErrWriteFailed means a document could not be written to its new location.
	ErrWriteFailed = errors.New("write failed")

	// ErrTargetExists means a planned new location is already occupied.
	ErrTargetExists = errors.New("target path already exists")

	// ErrUnsafeTarget means a planned new location falls outside the specs
	// directory.
	ErrUnsafeTarget = errors.New("target path outside specs directory")

	// ErrMixedLayout means some documents are migrated and some are not.
	ErrMixedLayout = errors.New("corpus mixes migrated and unmigrated documents")

	// ErrDirtyWorkspace means the VCS reports uncommitted changes under the
	// specs directory and a clean tree is required.
	ErrDirtyWorkspace = errors.New("uncommitted changes in specs directory")

	// ErrAborted means the run was declined at the confirmation step.
	ErrAborted = errors.New("migration aborted")

	// ErrNoBackup means a rollback has no backup directory to restore from.
	ErrNoBackup = errors.New("backup directory not found")
)

// WriteError reports a failed write phase. Nothing has been deleted when
// it is returned.
type WriteError struct {
	// Path is the target that could not be written.
	Path string

	// Written lists the targets written before the failure.
	Written []string

	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s (%d file(s) written before failure): %v", ErrWriteFailed, e.Path, len(e.Written), e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// IsFatal reports whether err is a run-level failure that must stop the
// batch. Per-document conditions are logged and never reach the caller.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrBackupFailed,
		ErrWriteFailed,
		ErrTargetExists,
		ErrUnsafeTarget,
		ErrMixedLayout,
		ErrDirtyWorkspace,
		hierarchy.ErrBrokenHierarchy,
		hierarchy.ErrDuplicateNewID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAborted reports whether err is a declined confirmation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// CleanupError lists originals that could not be removed after a successful
// write phase. The new tree is complete; the run can be resumed.
type CleanupError struct {
	Paths []string
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove %d original file(s) (%s): %v", len(e.Paths), strings.Join(e.Paths, ", "), e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
