// Package datasettest builds small on-disk datasets for tests.
package datasettest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hardhat-pipeline/internal/dataset"

	"github.com/stretchr/testify/require"
)

// Split lists the file names to create under <split>/images and <split>/labels.
type Split struct {
	Images []string
	Labels []string
}

// Write creates a dataset in the source layout under dir, with a data.yaml
// naming the given classes. Splits missing from splits are created empty.
func Write(t *testing.T, dir string, l dataset.Layout, splits map[string]Split, classes ...string) {
	t.Helper()

	for _, split := range l.Splits() {
		s := splits[split]
		imgDir := filepath.Join(dir, split, l.ImageDir)
		lblDir := filepath.Join(dir, split, l.LabelDir)
		require.NoError(t, os.MkdirAll(imgDir, os.ModePerm))
		require.NoError(t, os.MkdirAll(lblDir, os.ModePerm))

		for _, name := range s.Images {
			require.NoError(t, os.WriteFile(filepath.Join(imgDir, name), []byte("image:"+name), 0644))
		}
		for _, name := range s.Labels {
			require.NoError(t, os.WriteFile(filepath.Join(lblDir, name), []byte("0 0.5 0.5 0.1 0.1\n"), 0644))
		}
	}

	if len(classes) > 0 {
		quoted := make([]string, len(classes))
		for i, c := range classes {
			quoted[i] = "'" + c + "'"
		}
		content := fmt.Sprintf("nc: %d\nnames: [%s]\n", len(classes), strings.Join(quoted, ", "))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data.yaml"), []byte(content), 0644))
	}
}

// Valid writes a small dataset whose splits all pair up.
func Valid(t *testing.T, dir string, l dataset.Layout) {
	t.Helper()
	Write(t, dir, l, map[string]Split{
		l.TrainDir: {Images: []string{"a.jpg", "b.jpg"}, Labels: []string{"a.txt", "b.txt"}},
		l.ValDir:   {Images: []string{"c.jpg"}, Labels: []string{"c.txt"}},
		l.TestDir:  {Images: []string{"d.jpg"}, Labels: []string{"d.txt"}},
	}, "head", "helmet", "person")
}
