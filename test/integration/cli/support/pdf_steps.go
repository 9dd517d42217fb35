package support

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

// aPDFWithPages writes a PDF with one gradient raster per page, alternating
// landscape and portrait.
func (testCtx *TestContext) aPDFWithPages(name string, n int) error {
	pages := make([]image.Image, n)
	for i := range pages {
		if i%2 == 0 {
			pages[i] = testutil.Gradient(200, 100)
		} else {
			pages[i] = testutil.Gradient(120, 160)
		}
	}
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, pages); err != nil {
		return err
	}
	return os.WriteFile(testCtx.Path(name), buf.Bytes(), 0o600)
}

// thePDFShouldHavePages extracts the rasters of a result PDF and counts them.
func (testCtx *TestContext) thePDFShouldHavePages(name string, n int) error {
	pages, err := pdf.Extract(testCtx.Path(name), pdf.Options{})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(pages) != n {
		return fmt.Errorf("%s has %d pages, want %d", name, len(pages), n)
	}
	return nil
}

// RegisterPDFSteps registers PDF fixture and result steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with (\d+) pages?$`, testCtx.aPDFWithPages)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
}
