package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMention checks the returned error and everything written to
// stderr.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	var msg string
	if testCtx.LastError != nil {
		msg = testCtx.LastError.Error()
	}
	msg += "\n" + testCtx.LastStderr
	if !strings.Contains(strings.ToLower(msg), strings.ToLower(text)) {
		return fmt.Errorf("error does not mention %q\nError: %s", text, msg)
	}
	return nil
}

// theOutputShouldReportAnErrorFor matches the per-file error line of detect.
func (testCtx *TestContext) theOutputShouldReportAnErrorFor(file string) error {
	return testCtx.theOutputShouldContain(file + ": error:")
}

// RegisterErrorSteps registers error verification steps.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should report an error for "([^"]*)"$`, testCtx.theOutputShouldReportAnErrorFor)
}
