package batch

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/session"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// FileResult is the outcome of correcting one image.
type FileResult struct {
	File     string                 `json:"file"`
	Output   string                 `json:"output,omitempty"`
	Origin   string                 `json:"origin,omitempty"`
	Corners  *geometry.OriginalQuad `json:"corners,omitempty"`
	Width    int                    `json:"width,omitempty"`
	Height   int                    `json:"height,omitempty"`
	Duration time.Duration          `json:"duration_ns"`
	Error    string                 `json:"error,omitempty"`
}

// Failed reports whether the file could not be corrected.
func (r FileResult) Failed() bool { return r.Error != "" }

// planOutputs assigns every input its export path. Inputs from different
// directories that share a base name get a numeric suffix when they are
// written to the same output directory.
func planOutputs(files []string, cfg Config) ([]string, error) {
	outputs := make([]string, len(files))
	taken := make(map[string]bool, len(files))
	for i, file := range files {
		dir := cfg.OutputDir
		if dir == "" {
			dir = filepath.Dir(file)
		}
		base, err := export.NormalizeBase(file)
		if err != nil {
			return nil, fmt.Errorf("name output for %s: %w", file, err)
		}
		candidate := base
		for n := 2; ; n++ {
			name, err := export.Filename(candidate, 0, cfg.Format)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(dir, name)
			if !taken[path] {
				taken[path] = true
				outputs[i] = path
				break
			}
			candidate = base + "-" + strconv.Itoa(n)
		}
	}
	return outputs, nil
}

// processFile detects the document in path, warps it and writes the result
// to dest.
func processFile(ctx context.Context, det session.Detector, cfg Config, path, dest string) FileResult {
	start := time.Now()
	res := FileResult{File: path}
	fail := func(err error) FileResult {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	img, _, err := utils.LoadImage(path, cfg.Constraints)
	if err != nil {
		return fail(err)
	}
	sess := session.New(det, cfg.Session)
	if err := sess.Load(ctx, img, filepath.Base(path)); err != nil {
		return fail(err)
	}
	orig, err := sess.OriginalPoints()
	if err != nil {
		return fail(err)
	}
	res.Origin = sess.Origin().String()
	res.Corners = &orig

	out, err := sess.Warp(ctx)
	if err != nil {
		return fail(err)
	}
	if err := export.WriteFile(dest, out, cfg.Format, cfg.Export); err != nil {
		return fail(err)
	}
	_ = sess.MarkExported()
	res.Output = dest
	res.Width, res.Height = out.Bounds().Dx(), out.Bounds().Dy()

	if cfg.OverlayDir != "" {
		if err := writeOverlay(cfg, path, img, orig); err != nil {
			return fail(err)
		}
	}
	res.Duration = time.Since(start)
	return res
}

func writeOverlay(cfg Config, path string, img image.Image, orig geometry.OriginalQuad) error {
	col := cfg.OverlayColor
	if col == nil {
		c, err := rectify.ParseOverlayColor("")
		if err != nil {
			return err
		}
		col = c
	}
	name, err := export.NormalizeBase(path)
	if err != nil {
		return err
	}
	return rectify.WriteOverlayPNG(filepath.Join(cfg.OverlayDir, name+"-overlay.png"), img, orig, col)
}
