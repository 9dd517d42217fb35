package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// iRunCommand executes a docscan command line in process. {tmp} expands to
// the scenario's temp directory.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "docscan" {
		return fmt.Errorf("unsupported command %q", parts[0])
	}

	resetFlags(testCtx.Root)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	testCtx.Root.SetOut(stdout)
	testCtx.Root.SetErr(stderr)
	testCtx.Root.SetArgs(parts[1:])
	defer func() {
		testCtx.Root.SetOut(nil)
		testCtx.Root.SetErr(nil)
		testCtx.Root.SetArgs(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	bindContext(ctx, testCtx.Root)

	start := time.Now()
	err := testCtx.Root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// bindContext hands ctx to every command in the tree. Cobra only passes
// the root context down to a subcommand whose own context is still nil, so
// a reused tree would otherwise keep the first, long cancelled, context.
func bindContext(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		bindContext(ctx, c)
	}
}

// resetFlags restores every flag to its default, since cobra keeps flag
// values between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		// Set would parse the "[]" default of a slice flag as one element.
		if sv, ok := f.Value.(pflag.SliceValue); ok && f.DefValue == "[]" {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONFieldShouldBe compares the value at a dotted path of the JSON
// output. Numeric segments index arrays, e.g. "0.origin".
func (testCtx *TestContext) theJSONFieldShouldBe(path, expected string) error {
	return jsonFieldEquals([]byte(testCtx.LastOutput), path, expected)
}

func (testCtx *TestContext) theJSONArrayShouldHaveLength(path string, n int) error {
	v, err := lookupJSON([]byte(testCtx.LastOutput), path)
	if err != nil {
		return err
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %q is not an array: %v", path, v)
	}
	if len(arr) != n {
		return fmt.Errorf("field %q has %d elements, want %d", path, len(arr), n)
	}
	return nil
}

func jsonFieldEquals(data []byte, path, expected string) error {
	v, err := lookupJSON(data, path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q is %q, want %q", path, got, expected)
	}
	return nil
}

func lookupJSON(data []byte, path string) (any, error) {
	var cur any
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w\n%s", err, data)
	}
	if path == "" {
		return cur, nil
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in JSON", path)
			}
			cur = next
		case []any:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("invalid index %q in %q", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("field %q not found in JSON", path)
		}
	}
	return cur, nil
}

// registerCommandSteps registers command execution steps.
func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run '([^']*)'$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
}

// registerOutputSteps registers output verification steps.
func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON array "([^"]*)" should have (\d+) elements?$`, testCtx.theJSONArrayShouldHaveLength)
	sc.Step(`^the output should be a JSON array of (\d+) elements?$`, func(n int) error {
		return testCtx.theJSONArrayShouldHaveLength("", n)
	})
}

// RegisterCommonSteps registers all common step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
}
