package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyName is returned when a base name normalises to nothing.
var ErrEmptyName = errors.New("export: empty file name")

// Filename names the export of a corrected image. Page 0 means a single
// image: <base>-corrected.<ext>. Pages from 1 up name a PDF page:
// <base>-page-<n>-corrected.<ext>.
func Filename(base string, page int, f Format) (string, error) {
	name, err := NormalizeBase(base)
	if err != nil {
		return "", err
	}
	if page > 0 {
		return fmt.Sprintf("%s-page-%d-corrected.%s", name, page, f.Ext()), nil
	}
	return fmt.Sprintf("%s-corrected.%s", name, f.Ext()), nil
}

// DocumentFilename names the PDF assembled from all pages of a document.
func DocumentFilename(base string) (string, error) {
	name, err := NormalizeBase(base)
	if err != nil {
		return "", err
	}
	return name + "-edited.pdf", nil
}

// NormalizeBase reduces a file name or path to a portable base name: the
// directory and extension are dropped, accents are removed and every
// character outside [A-Za-z0-9._-] becomes a dash.
func NormalizeBase(base string) (string, error) {
	base = strings.TrimSpace(filepath.Base(strings.TrimSpace(base)))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, base)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", base, err)
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.Trim(b.String(), "-.")
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}
