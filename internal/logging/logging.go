// Package logging builds the run logger shared by specmigrate components.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/speclayout/specmigrate/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to the rotated log file from cfg and, when
// verbose is set, to stderr as well. With neither it discards output.
// The returned Closer releases the log file.
func New(cfg config.LogConfig, verbose bool) (*log.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if verbose {
		writers = append(writers, os.Stderr)
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, lj)
		closer = lj
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}
	return log.New(out, "", log.LstdFlags), closer, nil
}

// With returns a logger sharing parent's output and flags, with
// "[component] " placed after the timestamp. A nil parent writes to stderr.
func With(parent *log.Logger, component string) *log.Logger {
	prefix := "[" + component + "] "
	if parent == nil {
		return log.New(os.Stderr, prefix, log.LstdFlags|log.Lmsgprefix)
	}
	return log.New(parent.Writer(), parent.Prefix()+prefix, parent.Flags()|log.Lmsgprefix)
}
