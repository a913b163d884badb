// Package pathutil confines user-supplied file paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportDirName is the directory, under ~/.ideograph or a project root,
// that graph exports may be written to.
const ExportDirName = "exports"

// ErrOutsideAllowed is wrapped by ValidatePath when a path escapes every
// allowed directory.
var ErrOutsideAllowed = errors.New("path is outside allowed directories")

// RedactPath shortens a path to .../<parent>/<base> for error messages, so
// home directories do not leak into tool output.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath reports whether path, after cleaning and symlink resolution of
// its deepest existing ancestor, lies inside one of allowedDirs.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return errors.New("invalid path: empty")
	case len(allowedDirs) == 0:
		return errors.New("invalid path: no allowed directories")
	case strings.ContainsRune(path, '\x00'):
		return errors.New("invalid path: contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		base, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		if base, err = resolveExisting(base); err != nil {
			continue
		}
		if within(resolved, base) {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", RedactPath(abs), ErrOutsideAllowed)
}

// resolveExisting resolves symlinks on the deepest ancestor of dir that
// exists and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

// DefaultExportDirs returns ~/.ideograph/exports.
func DefaultExportDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{filepath.Join(home, ".ideograph", ExportDirName)}, nil
}

// ExportDirsWithRoot adds <projectRoot>/.ideograph/exports to the defaults.
func ExportDirsWithRoot(projectRoot string) ([]string, error) {
	dirs, err := DefaultExportDirs()
	if err != nil {
		return nil, err
	}
	return append(dirs, filepath.Join(projectRoot, ".ideograph", ExportDirName)), nil
}
