package migrate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Writer persists rendered documents. Tests swap it to inject failures.
type Writer interface {
	WriteFile(path string, data []byte) error
}

// AtomicWriter writes through a temp file and rename, creating parent
// directories as needed.
type AtomicWriter struct{}

// WriteFile implements Writer.
func (AtomicWriter) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// atomic creates its temp file 0600.
	return os.Chmod(path, 0644)
}
