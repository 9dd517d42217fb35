// Package export writes corrected pages as PNG, JPEG or PDF and names the
// output files.
package export

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrUnsupportedFormat is returned for formats other than png, jpeg and pdf.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrNoPages is returned when a PDF would have no pages.
	ErrNoPages = errors.New("no pages to export")
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	PDF  Format = "pdf"
)

// DefaultJPEGQuality is used when Options.JPEGQuality is unset.
const DefaultJPEGQuality = 92

// ParseFormat accepts png, jpeg (or jpg) and pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "pdf":
		return PDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PDF:
		return "application/pdf"
	default:
		return "image/png"
	}
}

// Options holds encoder settings.
type Options struct {
	JPEGQuality int // 1-100 (default: DefaultJPEGQuality)
}

// Encode writes img to w in format f. A PDF holds a single page sized to
// the image.
func Encode(w io.Writer, img image.Image, f Format, opts Options) error {
	if img == nil {
		return errors.New("export: nil image")
	}
	switch f {
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case JPEG:
		q := opts.JPEGQuality
		if q <= 0 || q > 100 {
			q = DefaultJPEGQuality
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
	case PDF:
		return WritePDF(w, []image.Image{img})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteFile encodes img into path, creating parent directories.
func WriteFile(path string, img image.Image, f Format, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(out, img, f, opts); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return out.Close()
}

// WritePDF writes a PDF with one page per raster, each page sized to its
// image.
func WritePDF(w io.Writer, pages []image.Image) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	tempDir, err := os.MkdirTemp("", "pdf-export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	files := make([]string, len(pages))
	for i, page := range pages {
		if page == nil {
			return fmt.Errorf("page %d: nil image", i+1)
		}
		files[i] = filepath.Join(tempDir, fmt.Sprintf("page-%04d.png", i+1))
		if err := imaging.Save(page, files[i]); err != nil {
			return fmt.Errorf("failed to stage page %d: %w", i+1, err)
		}
	}

	// pos:full sizes every page to its image.
	outFile := filepath.Join(tempDir, "out.pdf")
	if err := api.ImportImagesFile(files, outFile, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("failed to build PDF: %w", err)
	}

	f, err := os.Open(outFile) //nolint:gosec // G304: file lives in our temp directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}
