package cli_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docscan/cmd/docscan/cmd"
	"github.com/MeKo-Tech/docscan/test/integration/cli/support"
)

// initializeScenario gives every scenario its own temp directory and a
// freshly reset command tree.
func initializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext(cmd.GetRootCommand())
	if err != nil {
		panic(fmt.Sprintf("create scenario context: %v", err))
	}

	tc.RegisterCommonSteps(sc)
	tc.RegisterImageSteps(sc)
	tc.RegisterPDFSteps(sc)
	tc.RegisterServerSteps(sc)
	tc.RegisterErrorSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		return ctx, tc.Cleanup()
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestFeatures runs every scenario under features/. GODOG_FORMAT and
// GODOG_TAGS narrow a run, e.g. GODOG_TAGS=@server.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("feature scenarios exercise the whole command line")
	}

	suite := godog.TestSuite{
		Name:                "docscan",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   envOr("GODOG_FORMAT", "pretty"),
			Tags:     os.Getenv("GODOG_TAGS"),
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if status := suite.Run(); status != 0 {
		t.Fatalf("feature suite exited with status %d", status)
	}
}

// TestMain keeps a user's docscan.yaml out of the run.
func TestMain(m *testing.M) {
	configHome, err := os.MkdirTemp("", "docscan-features-config")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.Setenv("XDG_CONFIG_HOME", configHome); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(configHome)
	os.Exit(code)
}
