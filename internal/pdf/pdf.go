// Package pdf turns the pages of a scanned PDF into rasters for the editor.
//
// A scanned page is a single full-page image, so the page raster is the
// largest image pdfcpu extracts from that page.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// ErrNoImages is returned when none of the selected pages carries an image.
var ErrNoImages = errors.New("pdf contains no page images")

// Page is the raster of one PDF page.
type Page struct {
	Number int // 1-based
	Image  image.Image
}

// Options controls page extraction.
type Options struct {
	Pages    string // page range such as "1-3,5"; empty selects all pages
	Password string // user or owner password for encrypted files
}

// Extract returns the page rasters selected by opts in page order. Pages
// without an image are skipped.
func Extract(filename string, opts Options) ([]Page, error) {
	pageNumbers, err := parsePageRange(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.Pages, err)
	}

	source, cleanup, err := decryptIfNeeded(filename, opts.Password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if len(pageNumbers) > 0 {
		count, err := api.PageCountFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF page count: %w", err)
		}
		if last := slices.Max(pageNumbers); last > count {
			return nil, fmt.Errorf("page %d out of range: document has %d pages", last, count)
		}
	}

	tempDir, err := os.MkdirTemp("", "pdf-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, n := range pageNumbers {
		pageStrings = append(pageStrings, strconv.Itoa(n))
	}
	if err := api.ExtractImagesFile(source, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	extracted, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	pages := largestPerPage(extracted)
	if len(pages) == 0 {
		return nil, ErrNoImages
	}
	slog.Debug("Extracted PDF pages", "file", filename, "pages", len(pages))
	return pages, nil
}

// largestPerPage picks the image with the most pixels on each page.
func largestPerPage(extracted map[int][]image.Image) []Page {
	pages := make([]Page, 0, len(extracted))
	for n, imgs := range extracted {
		var best image.Image
		bestArea := 0
		for _, img := range imgs {
			b := img.Bounds()
			if area := b.Dx() * b.Dy(); area > bestArea {
				best, bestArea = img, area
			}
		}
		if best != nil {
			pages = append(pages, Page{Number: n, Image: best})
		}
	}
	slices.SortFunc(pages, func(a, b Page) int { return a.Number - b.Number })
	return pages
}

// loadImageFile loads an image from a file path.
func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: files come from our own temp directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// collectExtractedImages walks dir and groups decodable images by page number.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		pageNum, err := parsePageFromFilename(info.Name())
		if err != nil {
			return nil
		}
		img, err := loadImageFile(path)
		if err != nil {
			slog.Debug("Skipping unreadable extracted image", "file", info.Name(), "error", err)
			return nil
		}
		result[pageNum] = append(result[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from an extracted image
// name. pdfcpu names images <base>_<page>_<id>.<ext>; the legacy
// page_<page>_image_<idx>.<ext> form is accepted too.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")

	var token string
	switch {
	case strings.HasPrefix(filename, "page_") && len(parts) >= 2:
		token = parts[1]
	case len(parts) >= 3:
		token = parts[len(parts)-2]
	default:
		return 0, errors.New("not a page image file")
	}

	pageNum, err := strconv.Atoi(token)
	if err != nil || pageNum < 1 {
		return 0, fmt.Errorf("invalid page number %q", token)
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5". The
// result is sorted and free of duplicates.
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil // all pages
	}

	var pages []int
	for part := range strings.SplitSeq(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	slices.Sort(pages)
	return slices.Compact(pages), nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := parsePageNumber(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := parsePageNumber(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := parsePageNumber(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}

func parsePageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("pages are numbered from 1")
	}
	return n, nil
}
