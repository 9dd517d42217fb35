// Package batch corrects many document photos in one run: it discovers the
// images, detects and warps each one on a worker pool and reports the
// outcome per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/session"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// Result holds the outcome of a batch run in input order.
type Result struct {
	Files    []FileResult
	Duration time.Duration
	Workers  int
}

type job struct {
	index int
	path  string
	dest  string
}

type jobResult struct {
	index  int
	result FileResult
}

// Run corrects every image named by paths. Failures of single files are
// recorded in their FileResult; the returned error covers discovery,
// configuration and cancellation only.
func Run(ctx context.Context, det session.Detector, paths []string, cfg Config) (*Result, error) {
	if det == nil {
		return nil, errors.New("batch: detector is required")
	}
	if cfg.Format == export.PDF {
		return nil, fmt.Errorf("batch writes images; use png or jpeg (got %s)", cfg.Format)
	}

	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	outputs, err := planOutputs(files, cfg)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.OutputDir, cfg.OverlayDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	workers := cfg.workers(len(files))
	if cfg.Progress != nil {
		cfg.Progress.OnStart(len(files))
		defer cfg.Progress.OnComplete()
	}

	start := time.Now()
	jobs := make(chan job, len(files))
	results := make(chan jobResult, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					return
				}
				results <- jobResult{index: j.index, result: processFile(ctx, det, cfg, j.path, j.dest)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range files {
			select {
			case jobs <- job{index: i, path: path, dest: outputs[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]FileResult, len(files))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		done++
		if cfg.Progress != nil {
			if r.result.Failed() {
				cfg.Progress.OnError(r.result.File, errors.New(r.result.Error))
			}
			cfg.Progress.OnProgress(done, len(files))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{Files: ordered, Duration: time.Since(start), Workers: workers}, nil
}
