package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// Document is a multi-page source, typically the pages of a PDF, together
// with the corrected rasters saved so far.
type Document struct {
	mu     sync.Mutex
	name   string
	pages  []image.Image
	edited map[int]image.Image
	det    Detector
	cfg    Config
}

// NewDocument creates a document over the given page rasters.
func NewDocument(name string, pages []image.Image, det Detector, cfg Config) (*Document, error) {
	if len(pages) == 0 {
		return nil, ErrNoImage
	}
	for i, p := range pages {
		if p == nil || p.Bounds().Empty() {
			return nil, fmt.Errorf("page %d: %w", i+1, ErrNoImage)
		}
	}
	return &Document{
		name:   name,
		pages:  pages,
		edited: make(map[int]image.Image),
		det:    det,
		cfg:    cfg,
	}, nil
}

// Name returns the document name.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Open loads page pageIndex (0-based) into a fresh session.
func (d *Document) Open(ctx context.Context, pageIndex int) (*Session, error) {
	if err := d.checkIndex(pageIndex); err != nil {
		return nil, err
	}
	s := New(d.det, d.cfg)
	if err := s.Load(ctx, d.pages[pageIndex], fmt.Sprintf("%s page %d", d.name, pageIndex+1)); err != nil {
		return nil, err
	}
	return s, nil
}

// Save stores the corrected raster for page pageIndex, replacing any
// earlier one.
func (d *Document) Save(pageIndex int, img image.Image) error {
	if err := d.checkIndex(pageIndex); err != nil {
		return err
	}
	if img == nil {
		return ErrNoImage
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edited[pageIndex] = img
	return nil
}

// Edited returns the indices of the pages that have a saved raster, in
// ascending order.
func (d *Document) Edited() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.edited))
}

// Pages returns one raster per page in page order: the saved raster where
// there is one and the original page otherwise.
func (d *Document) Pages() []image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]image.Image, len(d.pages))
	for i, p := range d.pages {
		if e, ok := d.edited[i]; ok {
			out[i] = e
			continue
		}
		out[i] = p
	}
	return out
}

// PageReport describes how AutoScan handled one page.
type PageReport struct {
	Page    int                    `json:"page"`
	Origin  Origin                 `json:"origin"`
	Corners *geometry.OriginalQuad `json:"corners,omitempty"`
	Width   int                    `json:"width,omitempty"`
	Height  int                    `json:"height,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// AutoScan corrects every page with the corners placed on load and saves
// the results. Pages whose corners do not form a usable quad keep their
// original raster and carry the reason in their report.
func (d *Document) AutoScan(ctx context.Context) ([]PageReport, error) {
	reports := make([]PageReport, 0, len(d.pages))
	for i := range d.pages {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s, err := d.Open(ctx, i)
		if err != nil {
			return reports, fmt.Errorf("page %d: %w", i+1, err)
		}
		r := PageReport{Page: i + 1, Origin: s.Origin()}
		if q, err := s.OriginalPoints(); err == nil {
			r.Corners = &q
		}

		out, err := s.Warp(ctx)
		if err != nil {
			var ge *InvalidGeometryError
			if !errors.As(err, &ge) {
				return reports, fmt.Errorf("page %d: %w", i+1, err)
			}
			slog.Warn("Keeping original page", "document", d.name, "page", i+1, "error", err)
			r.Error = err.Error()
			reports = append(reports, r)
			continue
		}
		if err := d.Save(i, out); err != nil {
			return reports, err
		}
		r.Width, r.Height = out.Bounds().Dx(), out.Bounds().Dy()
		reports = append(reports, r)
	}
	return reports, nil
}

func (d *Document) checkIndex(i int) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, i+1, len(d.pages))
	}
	return nil
}
