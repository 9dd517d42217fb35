package support

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docscan/internal/server"
)

func (testCtx *TestContext) aRunningTestServer() error {
	return testCtx.startTestHTTPServer(nil)
}

func (testCtx *TestContext) aRunningTestServerWithRateLimit(perMinute int) error {
	return testCtx.startTestHTTPServer(func(cfg *server.Config) {
		cfg.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	})
}

func (testCtx *TestContext) iRequest(path string) error {
	return testCtx.get(path)
}

func (testCtx *TestContext) iUploadTo(file, field, path string) error {
	return testCtx.upload(path, field, file, nil)
}

// iUploadToWithFields reads the extra form fields from a two-column table.
func (testCtx *TestContext) iUploadToWithFields(file, field, path string, table *godog.Table) error {
	fields := make(map[string]string, len(table.Rows))
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("form field rows need a name and a value")
		}
		fields[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.upload(path, field, file, fields)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status is %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseBodyShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldBe(path, expected string) error {
	return jsonFieldEquals(testCtx.LastHTTPBody, path, expected)
}

// theResponseImageShouldMeasure decodes the response body as an image.
func (testCtx *TestContext) theResponseImageShouldMeasure(width, height int) error {
	img, _, err := image.Decode(bytes.NewReader(testCtx.LastHTTPBody))
	if err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	return checkSize(img, width, height)
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a docscan test server is running$`, testCtx.aRunningTestServer)
	sc.Step(`^a docscan test server is running with a limit of (\d+) requests? per minute$`,
		testCtx.aRunningTestServerWithRateLimit)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)" to "([^"]*)" with:$`, testCtx.iUploadToWithFields)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseBodyShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response image should be (\d+)x(\d+)$`, testCtx.theResponseImageShouldMeasure)
}
