package batch

import (
	"image/color"
	"runtime"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Config holds all configuration for batch correction.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	OutputDir    string // empty writes next to each input
	Format       export.Format
	Export       export.Options
	OverlayDir   string
	OverlayColor color.Color

	// Processing settings
	Workers     int // 0 = runtime.NumCPU()
	Session     session.Config
	Constraints utils.ImageConstraints
	Progress    ProgressCallback
}

// DefaultConfig returns PNG output next to the inputs with one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Format:      export.PNG,
		Workers:     runtime.NumCPU(),
		Session:     session.DefaultConfig(),
		Constraints: utils.DefaultImageConstraints(),
	}
}

func (c Config) workers(jobs int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, jobs))
}
