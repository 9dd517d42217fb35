package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/testutil"
)

func TestIsSupportedImage(t *testing.T) {
	tests := map[string]bool{
		"scan.png":    true,
		"scan.JPG":    true,
		"scan.jpeg":   true,
		"scan.webp":   true,
		"scan.tiff":   true,
		"scan.pdf":    false,
		"scan":        false,
		"archive.zip": false,
	}
	for path, want := range tests {
		assert.Equal(t, want, IsSupportedImage(path), path)
	}
	assert.True(t, IsPDF("doc.PDF"))
	assert.False(t, IsPDF("doc.png"))
}

func TestLoadImage_PNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.png")
	testutil.SaveImage(t, testutil.CreateTestImage(120, 80, color.White), path)

	img, meta, err := LoadImage(path, DefaultImageConstraints())
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, path, meta.Path)
	assert.Positive(t, meta.SizeBytes)
	assert.False(t, meta.Downscaled)
	assert.InDelta(t, 1.5, meta.AspectRatio, 1e-9)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("", DefaultImageConstraints())
	require.Error(t, err)

	_, _, err = LoadImage("notes.txt", DefaultImageConstraints())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"), DefaultImageConstraints())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad, DefaultImageConstraints())
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestDecodeImage_Formats(t *testing.T) {
	src := testutil.Gradient(64, 48)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, src, &jpeg.Options{Quality: 90}))
	img, meta, err := DecodeImage(&jpg, DefaultImageConstraints())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, src, nil))
	_, meta, err = DecodeImage(&gf, DefaultImageConstraints())
	require.NoError(t, err)
	assert.Equal(t, "gif", meta.Format)
}

func TestDecodeImage_Downscales(t *testing.T) {
	data := testutil.EncodePNG(t, testutil.CreateTestImage(1000, 500, color.Gray{Y: 200}))
	constraints := DefaultImageConstraints()
	constraints.MaxWidth, constraints.MaxHeight = 400, 400

	img, meta, err := DecodeImage(bytes.NewReader(data), constraints)
	require.NoError(t, err)
	assert.True(t, meta.Downscaled)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
	assert.Equal(t, int64(len(data)), meta.SizeBytes)
}

func TestDecodeImage_TooSmall(t *testing.T) {
	data := testutil.EncodePNG(t, testutil.CreateTestImage(8, 8, color.White))
	_, _, err := DecodeImage(bytes.NewReader(data), DefaultImageConstraints())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestValidateImageConstraints_Nil(t *testing.T) {
	err := ValidateImageConstraints(nil, DefaultImageConstraints())
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "validate", ipe.Operation)
}
