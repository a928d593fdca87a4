package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var ErrFrameworkMissing = errors.New("detection framework checkout not found")

// CheckScript verifies that the framework checkout at root holds script and
// returns the absolute checkout path.
func CheckScript(root, script string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFrameworkMissing, abs)
	}

	if err := RequireFile(filepath.Join(abs, script)); err != nil {
		return "", err
	}
	return abs, nil
}

// RequireFile returns an error wrapping fs.ErrNotExist when path is missing.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("required file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("required file %s is a directory: %w", path, fs.ErrNotExist)
	}
	return nil
}
