package support

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docscan/internal/testutil"
)

// aDocumentImage renders the default skewed sheet on a dark desk.
func (testCtx *TestContext) aDocumentImage(name string) error {
	img, err := testutil.GenerateDocumentImage(testutil.DefaultDocumentConfig())
	if err != nil {
		return err
	}
	return testCtx.saveImage(img, name)
}

// aBlankImage writes a uniform grey image on which no document can be found.
func (testCtx *TestContext) aBlankImage(name string, width, height int) error {
	img := testutil.CreateTestImage(width, height, color.Gray{Y: 200})
	return testCtx.saveImage(img, name)
}

func (testCtx *TestContext) aTextFile(name string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("not an image"), 0o600)
}

func (testCtx *TestContext) saveImage(img image.Image, name string) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// theFileShouldExist verifies that a file exists.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

// theImageShouldMeasure decodes the file and checks its size.
func (testCtx *TestContext) theImageShouldMeasure(name string, width, height int) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	return checkSize(img, width, height)
}

func checkSize(img image.Image, width, height int) error {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// RegisterImageSteps registers image fixture and result steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a document image "([^"]*)"$`, testCtx.aDocumentImage)
	sc.Step(`^a blank image "([^"]*)" of (\d+)x(\d+)$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldMeasure)
}
