package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, label := range []string{"", "Validation Status:"} {
		for _, ok := range []bool{true, false} {
			path := filepath.Join(dir, "status.txt")
			require.NoError(t, Write(path, label, ok))

			got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, ok, got, "label=%q ok=%v", label, ok)
		}
	}
}

func TestWriteFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.txt")
	require.NoError(t, Write(path, "Validation Status:", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Validation Status: True", string(data))

	require.NoError(t, Write(path, "", false))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "False", string(data))
}

func TestRequire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.txt")

	assert.ErrorIs(t, Require(path), ErrStatusMissing)

	cases := map[string]error{
		"Validation Status: True":  nil,
		"True\n":                   nil,
		"Validation Status: False": ErrValidationFailed,
		"Validation Status: true":  ErrValidationFailed,
		"True False":               ErrValidationFailed,
		"":                         ErrValidationFailed,
		"Validation Status: TrueX": ErrValidationFailed,
	}
	for content, want := range cases {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		err := Require(path)
		if want == nil {
			assert.NoError(t, err, content)
		} else {
			assert.ErrorIs(t, err, want, content)
		}
	}
}
