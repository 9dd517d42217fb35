package testutil

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteDocument renders a document photo into dir and returns its path.
func WriteDocument(t *testing.T, dir, name string, config DocumentConfig) string {
	t.Helper()

	img, err := GenerateDocumentImage(config)
	require.NoError(t, err)
	return WriteImage(t, dir, name, img)
}

// WriteImage saves img as PNG under dir, creating parent directories for
// names like "nested/page.png".
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	SaveImage(t, img, path)
	return path
}

// WriteFile writes raw bytes under dir. Tests use it for files that only
// look like images.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path can be stat'ed.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
