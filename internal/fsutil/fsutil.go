// Package fsutil holds the directory plumbing used by the filesystem provider:
// provisioning nested shard directories under a root and purging whole subtrees.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidRoot  = errors.New("fsutil: root must be an existing writable directory")
	ErrInvalidPath  = errors.New("fsutil: invalid relative path")
	ErrCreateFailed = errors.New("fsutil: directory creation failed")
)

// CheckRoot reports ErrInvalidRoot unless root exists, is a directory and is writable.
func CheckRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}
	if err := Writable(root); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	return nil
}

// EnsurePath creates every missing directory of rel below root. Existing
// directories are accepted. rel must be a non-empty relative path that stays
// inside root.
func EnsurePath(root, rel string, perm fs.FileMode) error {
	if err := CheckRoot(root); err != nil {
		return err
	}
	segments, err := splitRel(rel)
	if err != nil {
		return err
	}

	dir := root
	for _, seg := range segments {
		dir = filepath.Join(dir, seg)
		err := os.Mkdir(dir, perm)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrExist) {
			if fi, statErr := os.Stat(dir); statErr == nil && fi.IsDir() {
				continue
			}
		}
		return fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	return nil
}

func splitRel(rel string) ([]string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	var out []string
	for _, seg := range strings.FieldsFunc(filepath.ToSlash(rel), func(r rune) bool { return r == '/' }) {
		switch seg {
		case ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %q escapes root", ErrInvalidPath, rel)
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return out, nil
}

// PurgeTree removes everything below path, children before parents. With
// keepRoot the directory at path survives empty, otherwise it is removed too.
// A missing path or a path that is not a directory is a no-op.
func PurgeTree(path string, keepRoot bool) error {
	fi, err := os.Lstat(path)
	if err != nil || !fi.IsDir() {
		return nil
	}
	if !keepRoot {
		return os.RemoveAll(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("fsutil: read %s: %w", path, err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
