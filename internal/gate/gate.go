// Package gate persists the validation outcome and guards the stages that
// depend on it.
package gate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrStatusMissing    = errors.New("validation status file not found")
	ErrValidationFailed = errors.New("dataset validation did not pass")
)

// Write records ok as "True" or "False", optionally preceded by label and a
// space, replacing any previous status.
func Write(path, label string, ok bool) error {
	content := strconv.FormatBool(ok)
	content = strings.ToUpper(content[:1]) + content[1:]
	if label != "" {
		content = label + " " + content
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for status file %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write status file %s: %w", path, err)
	}
	return nil
}

// Read returns true only when the last whitespace separated token of the
// status file is exactly "True".
func Read(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrStatusMissing, path)
		}
		return false, fmt.Errorf("failed to read status file %s: %w", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return false, nil
	}
	return fields[len(fields)-1] == "True", nil
}

// Require fails unless the status file exists and records a passing validation.
func Require(path string) error {
	ok, err := Read(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: status file %s", ErrValidationFailed, path)
	}
	return nil
}
