package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

func TestWriteAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "AAPL.json")
	in := []sample{{"2024-01-02", 185.6}, {"2024-01-03", 184.2}}

	require.NoError(t, WriteJSONAtomic(path, in))

	var out []sample
	found, err := ReadJSON(path, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestReadJSON_Missing(t *testing.T) {
	var out []sample
	found, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &out)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadJSON_Malformed(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"truncated": `[{"date":"2024-01-02","clo`,
		"not array": `{"date":"2024-01-02"}`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			var out []sample
			found, err := ReadJSON(path, &out)

			assert.True(t, found)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]bool{"inceptionLimited": true}))

	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path), "removing a missing file is not an error")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
