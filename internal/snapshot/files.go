package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName rejects names that would escape the snapshot directory.
var ErrInvalidName = errors.New("invalid snapshot name")

// Path resolves a stored snapshot name inside dir.
func Path(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(dir, name), nil
}

// Remove deletes a stored snapshot. Missing files are not an error.
func Remove(dir, name string) error {
	path, err := Path(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", name, err)
	}
	return nil
}
