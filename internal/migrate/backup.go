package migrate

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// copyTree recursively copies src to dst, which must not exist. File modes
// are kept and symlinks are recreated, not followed.
func copyTree(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s already exists", dst)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		}
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	// #nosec G304 - paths come from walking the configured specs directory
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// treeDigest lists every regular file under root with its size, for
// comparing a backup against its source.
func treeDigest(root string) (map[string]int64, error) {
	files := make(map[string]int64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = info.Size()
		return nil
	})
	return files, err
}

// backup copies src to dst and verifies that every file arrived with its
// size intact.
func backup(src, dst string) error {
	if err := copyTree(src, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	want, err := treeDigest(src)
	if err != nil {
		return fmt.Errorf("%w: failed to scan %s: %w", ErrBackupFailed, src, err)
	}
	got, err := treeDigest(dst)
	if err != nil {
		return fmt.Errorf("%w: failed to scan %s: %w", ErrBackupFailed, dst, err)
	}
	for rel, size := range want {
		if gotSize, ok := got[rel]; !ok || gotSize != size {
			return fmt.Errorf("%w: %s differs in backup", ErrBackupFailed, rel)
		}
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: backup has %d files, source has %d", ErrBackupFailed, len(got), len(want))
	}
	return nil
}

// pruneEmptyDirs removes empty directories below root, deepest first.
// root itself is kept.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				return fmt.Errorf("failed to remove empty directory %s: %w", dir, err)
			}
		}
	}
	return nil
}
