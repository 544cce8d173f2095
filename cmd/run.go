// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/llmclient"
	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/runner"
	"github.com/xkilldash9x/pagepilot/internal/service"
)

type runOptions struct {
	scenariosFile  string
	contextFile    string
	screenshotsDir string
	outputFile     string
	save           bool
}

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Generate and execute test scenarios against a page",
		Long: `Loads the page, extracts its forms, asks the oracle for test scenarios
and executes each one in a browser session. The run report is written as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd.OutOrStdout(), args[0], opts, factory)
		},
	}

	runCmd.Flags().StringVar(&opts.scenariosFile, "scenarios", "", "JSON file of scenarios to execute instead of generating them")
	runCmd.Flags().StringVar(&opts.contextFile, "context", "", "JSON file holding a previously extracted page context")
	runCmd.Flags().StringVar(&opts.screenshotsDir, "screenshots", "", "directory to write end-of-scenario screenshots to")
	runCmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "file to write the JSON report to (default stdout)")
	runCmd.Flags().BoolVar(&opts.save, "save", false, "persist generated scenarios to the scenario store")
	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	runCmd.Flags().String("browser-mode", "", "browser deployment mode (auto, local, serverless)")

	return runCmd
}

func runRun(ctx context.Context, out io.Writer, target string, opts *runOptions, factory service.ComponentFactory) error {
	logger := observability.GetLogger().Named("run")

	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}

	// 1. Fail fast on input problems, before anything is launched.
	if err := runner.ValidateURL(target); err != nil {
		return err
	}
	req := runner.Request{URL: target}
	if opts.scenariosFile != "" {
		if req.Scenarios, err = loadScenarios(opts.scenariosFile, logger); err != nil {
			return err
		}
	}
	if opts.contextFile != "" {
		if req.Context, err = loadPageContext(opts.contextFile); err != nil {
			return err
		}
	}

	// 2. Components.
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	// 3. Run.
	report, runErr := components.Runner.Run(ctx, req)
	if report == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	// 4. Persist generated scenarios.
	if opts.save && runErr == nil && len(req.Scenarios) == 0 && len(report.TestPlan) > 0 {
		saved, err := service.SaveScenarios(ctx, components.Store, target, report.TestPlan, logger)
		if err != nil {
			logger.Error("Failed to save scenarios.", zap.Error(err))
		}
		report.Saved = saved
	}

	// 5. Artifacts. The report is written even for a failed run.
	if opts.screenshotsDir != "" {
		if err := writeScreenshots(opts.screenshotsDir, report.Results); err != nil {
			logger.Error("Failed to write screenshots.", zap.Error(err))
		}
	}
	if err := writeReport(out, opts.outputFile, report); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Run finished.",
		zap.String("run_id", report.RunID),
		zap.Int("scenarios", len(report.Results)),
	)
	return nil
}

func loadScenarios(path string, logger *zap.Logger) ([]schemas.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios file: %w", err)
	}
	scenarios, rejected, err := llmclient.ParseScenarios(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse scenarios file %s: %w", path, err)
	}
	for _, r := range rejected {
		logger.Warn("Skipping scenario from file.", zap.Int("index", r.Index), zap.String("title", r.Title), zap.String("reason", r.Reason))
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenarios file %s contains no usable scenarios", path)
	}
	return scenarios, nil
}

func loadPageContext(path string) (*schemas.PageContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	var pageCtx schemas.PageContext
	if err := json.Unmarshal(data, &pageCtx); err != nil {
		return nil, fmt.Errorf("parse context file %s: %w", path, err)
	}
	return &pageCtx, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	if slug == "" {
		return "scenario"
	}
	return slug
}

func writeScreenshots(dir string, results []schemas.ScenarioResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create screenshots dir: %w", err)
	}
	for i, res := range results {
		if len(res.Screenshot) == 0 {
			continue
		}
		name := fmt.Sprintf("%02d-%s.png", i+1, slugify(res.ScenarioTitle))
		if err := os.WriteFile(filepath.Join(dir, name), res.Screenshot, 0o644); err != nil {
			return fmt.Errorf("write screenshot %s: %w", name, err)
		}
	}
	return nil
}

func writeReport(out io.Writer, path string, report *schemas.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report to %s: %w", path, err)
	}
	fmt.Fprintf(out, "Report written to %s\n", path)
	return nil
}
