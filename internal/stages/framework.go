package stages

import (
	"fmt"
	"path/filepath"
	"strconv"

	"hardhat-pipeline/internal/process"
)

var ErrFrameworkMissing = process.ErrFrameworkMissing

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

type scriptArgs struct {
	Weights string
	Data    string
	Batch   int
	Epochs  int
	Project string
	Name    string
	Cache   bool
}

func (a scriptArgs) build(script string) []string {
	args := []string{script, "--weights", a.Weights, "--data", a.Data, "--batch", strconv.Itoa(a.Batch)}
	if a.Epochs > 0 {
		args = append(args, "--epochs", strconv.Itoa(a.Epochs))
	}
	args = append(args, "--project", a.Project, "--name", a.Name, "--exist-ok")
	if a.Cache {
		args = append(args, "--cache")
	}
	return args
}
