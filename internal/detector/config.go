package detector

import (
	"errors"
	"fmt"
)

// Config holds the corner detector's tuning constants.
type Config struct {
	BlurKernel   int     // Gaussian kernel size, odd (default: 5)
	CannyLow     float64 // lower hysteresis threshold (default: 75)
	CannyHigh    float64 // upper hysteresis threshold (default: 200)
	MinAreaRatio float64 // contours must enclose more than this share of the image (default: 0.05)
	EpsilonRatio float64 // polygon tolerance as a share of the contour perimeter (default: 0.02)
}

// DefaultConfig returns the classic document-scanner settings.
func DefaultConfig() Config {
	return Config{
		BlurKernel:   5,
		CannyLow:     75,
		CannyHigh:    200,
		MinAreaRatio: 0.05,
		EpsilonRatio: 0.02,
	}
}

// Validate checks that the configuration can drive a detection.
func (c Config) Validate() error {
	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", c.BlurKernel)
	}
	if c.CannyLow < 0 || c.CannyHigh < 0 {
		return errors.New("canny thresholds must be non-negative")
	}
	if c.CannyLow > c.CannyHigh {
		return fmt.Errorf("canny low threshold %.1f exceeds high threshold %.1f", c.CannyLow, c.CannyHigh)
	}
	if c.MinAreaRatio < 0 || c.MinAreaRatio >= 1 {
		return fmt.Errorf("min area ratio must be in [0,1), got %.3f", c.MinAreaRatio)
	}
	if c.EpsilonRatio <= 0 || c.EpsilonRatio >= 1 {
		return fmt.Errorf("epsilon ratio must be in (0,1), got %.3f", c.EpsilonRatio)
	}
	return nil
}
