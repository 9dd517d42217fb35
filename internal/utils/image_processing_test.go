package utils

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageProcessingError(t *testing.T) {
	inner := errors.New("boom")
	err := &ImageProcessingError{Operation: "resize", Err: inner}
	assert.Equal(t, "image processing error in resize: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestFitImage(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"fits", 100, 50, 200, 200, 100, 50},
		{"wide", 800, 400, 400, 400, 400, 200},
		{"tall", 300, 900, 600, 300, 100, 300},
		{"unbounded width", 5000, 100, 0, 50, 2500, 50},
		{"exact", 400, 400, 400, 400, 400, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out := FitImage(img, ImageConstraints{MaxWidth: tt.maxW, MaxHeight: tt.maxH})
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestFitImage_ReturnsInputWhenItFits(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, img, FitImage(img, DefaultImageConstraints()))
}
