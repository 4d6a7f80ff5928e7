// Package security holds input checks applied to identifiers and file paths
// that arrive from clients before they reach the filesystem or object store.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidCameraID is returned for camera ids that cannot be used as a path
// segment or object key prefix.
var ErrInvalidCameraID = errors.New("invalid camera id")

var cameraIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateCameraID rejects ids outside [A-Za-z0-9_-]{1,64}.
func ValidateCameraID(id string) error {
	if !cameraIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidCameraID, id)
	}
	return nil
}

// canonical resolves symlinks in p. When p does not exist yet, the nearest
// existing ancestor is resolved and the remainder re-attached, so a missing
// file under a symlinked directory still resolves to the link target.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rest)
		}
		if dir == filepath.Dir(dir) {
			return p
		}
	}
}

// ValidatePathWithinDirectory returns an error if filePath, after cleaning and
// symlink resolution, lies outside safeDir.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	root, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(root, canonical(absPath))
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// JoinWithin joins elems under root and validates the result stays inside it.
func JoinWithin(root string, elems ...string) (string, error) {
	p := filepath.Join(append([]string{root}, elems...)...)
	if err := ValidatePathWithinDirectory(p, root); err != nil {
		return "", err
	}
	return p, nil
}
