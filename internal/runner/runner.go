// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/executor"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

const (
	msgNoForms     = "no usable forms"
	msgNoScenarios = "no scenarios generated"
	releaseTimeout = 30 * time.Second
)

// Extractor snapshots a loaded page.
type Extractor interface {
	Extract(ctx context.Context, page schemas.PageHandle) (*schemas.PageContext, error)
}

// Interpreter turns one natural-language step into an action.
type Interpreter interface {
	Interpret(step string, pageCtx schemas.PageContext) schemas.Action
}

// StepExecutor applies an action to the page.
type StepExecutor interface {
	Execute(ctx context.Context, page schemas.PageHandle, action schemas.Action, ec executor.ExecContext) schemas.StepResult
}

// Dependencies are the collaborators a Runner drives.
type Dependencies struct {
	Sessions    schemas.SessionProvider
	Extractor   Extractor
	Generator   schemas.ScenarioGenerator
	Interpreter Interpreter
	Executor    StepExecutor
}

// Request describes one run. Context and Scenarios are optional; when set
// they replace extraction and generation respectively.
type Request struct {
	URL       string
	Context   *schemas.PageContext
	Scenarios []schemas.Scenario
}

// Runner drives a single page through extraction, generation and execution of
// every scenario. A Runner holds no per-run state and may serve concurrent runs.
type Runner struct {
	cfg      config.RunnerConfig
	deps     Dependencies
	observer Observer
	logger   *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers a hook that sees every state transition.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// New creates a Runner.
func New(cfg config.RunnerConfig, deps Dependencies, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if deps.Sessions == nil || deps.Extractor == nil || deps.Generator == nil ||
		deps.Interpreter == nil || deps.Executor == nil {
		return nil, fmt.Errorf("cannot initialize runner with nil dependencies")
	}
	r := &Runner{cfg: cfg, deps: deps, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", schemas.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", schemas.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", schemas.ErrInvalidURL)
	}
	return nil
}

// Run executes one run. A non-nil report is returned whenever the session
// was acquired; the error is non-nil for an invalid URL, a fatal failure, no
// usable forms or cancellation.
func (r *Runner) Run(ctx context.Context, req Request) (*schemas.RunReport, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := observability.ForRun(r.logger, "runner", runID).With(zap.String("url", req.URL))
	m := newMachine(runID, r.observer)
	report := &schemas.RunReport{RunID: runID, TestPlan: []schemas.Scenario{}, Results: []schemas.ScenarioResult{}}

	// A pre-supplied context without forms ends the run before a browser is started.
	if req.Context != nil && len(req.Scenarios) == 0 && !req.Context.HasForms() {
		m.to(StateExtracting)
		report.Context = req.Context
		report.Message = msgNoForms
		m.to(StateCompleted)
		m.to(StateClosed)
		return report, schemas.ErrNoUsableForms
	}

	session, err := r.deps.Sessions.Acquire(ctx)
	if err != nil {
		m.to(StateClosed)
		return nil, fmt.Errorf("failed to acquire browser session: %w", err)
	}
	logger = logger.With(zap.String("session_id", session.ID()), zap.String("mode", session.Mode()))
	logger.Info("Run started.")

	defer func() {
		// The caller's context may already be canceled; release regardless.
		cleanupCtx, cancel := context.WithTimeout(browser.Detach(ctx), releaseTimeout)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- r.deps.Sessions.Release(session) }()
		select {
		case err := <-done:
			if err != nil {
				logger.Warn("Failed to release browser session.", zap.Error(err))
			}
		case <-cleanupCtx.Done():
			logger.Error("Timed out releasing browser session.")
		}
		m.to(StateClosed)
		logger.Info("Run finished.", zap.Int("scenarios", len(report.Results)))
	}()

	page := session.Page()

	// 1. Page context.
	m.to(StateExtracting)
	pageCtx, err := r.pageContext(ctx, page, req)
	if err != nil {
		return nil, err
	}
	report.Context = pageCtx

	// 2. Scenarios.
	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		if !pageCtx.HasForms() {
			logger.Info("Page has no forms; nothing to test.")
			report.Message = msgNoForms
			m.to(StateCompleted)
			return report, schemas.ErrNoUsableForms
		}
		m.to(StateGenerating)
		scenarios, err = r.deps.Generator.Generate(ctx, *pageCtx)
		if err != nil {
			return nil, err
		}
		if len(scenarios) == 0 {
			logger.Info("Oracle returned no scenarios.")
			m.to(StateNoScenarios)
			report.Success = true
			report.Message = msgNoScenarios
			m.to(StateCompleted)
			return report, nil
		}
	}
	report.TestPlan = scenarios

	// 3. Execute each scenario against a fresh load of the page.
	for i, sc := range scenarios {
		m.enterScenario(i)
		result := r.runScenario(ctx, m, page, req.URL, *pageCtx, sc, logger)
		report.Results = append(report.Results, result)
		if err := ctx.Err(); err != nil {
			m.leaveScenarios()
			report.Message = "run canceled"
			m.to(StateCompleted)
			return report, err
		}
	}
	m.leaveScenarios()

	report.Success = true
	m.to(StateCompleted)
	return report, nil
}

// pageContext returns the supplied context or loads the page and extracts one.
func (r *Runner) pageContext(ctx context.Context, page schemas.PageHandle, req Request) (*schemas.PageContext, error) {
	if req.Context != nil {
		return req.Context, nil
	}
	if err := page.Navigate(ctx, req.URL); err != nil {
		return nil, &schemas.ExtractionError{URL: req.URL, Err: err}
	}
	pageCtx, err := r.deps.Extractor.Extract(ctx, page)
	if err != nil {
		var ee *schemas.ExtractionError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &schemas.ExtractionError{URL: req.URL, Err: err}
	}
	return pageCtx, nil
}

func (r *Runner) runScenario(ctx context.Context, m *machine, page schemas.PageHandle, target string, pageCtx schemas.PageContext, sc schemas.Scenario, logger *zap.Logger) schemas.ScenarioResult {
	logger = logger.With(zap.String("scenario", sc.Title))
	result := schemas.ScenarioResult{ScenarioTitle: sc.Title, Steps: []schemas.StepResult{}}

	if err := page.Navigate(ctx, target); err != nil {
		logger.Warn("Re-navigation failed; aborting scenario.", zap.Error(err))
		result.OverallStatus = schemas.ScenarioAborted
		result.Error = fmt.Sprintf("navigation to %s failed: %v", target, err)
		return result
	}
	if err := page.WaitForIdle(ctx, r.cfg.DefaultWait); err != nil {
		logger.Debug("Page did not settle after navigation; continuing.", zap.Error(err))
	}

	m.to(StateExecuting)
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run canceled; aborting scenario.", zap.Int("completed_steps", i))
			result.OverallStatus = schemas.ScenarioAborted
			result.Error = fmt.Sprintf("run canceled: %v", err)
			return result
		}
		action := r.deps.Interpreter.Interpret(step, pageCtx)
		res := r.deps.Executor.Execute(ctx, page, action, executor.ExecContext{
			TargetURL: target,
			Sequence:  i + 1,
			Step:      step,
		})
		result.Steps = append(result.Steps, res)
	}
	if err := ctx.Err(); err != nil {
		result.OverallStatus = schemas.ScenarioAborted
		result.Error = fmt.Sprintf("run canceled: %v", err)
		return result
	}

	m.to(StateCapturing)
	if r.cfg.CaptureScreenshot {
		result.Screenshot = r.capture(ctx, page, logger)
	}
	result.OverallStatus = schemas.StatusFromSteps(result.Steps)
	logger.Info("Scenario finished.", zap.String("status", string(result.OverallStatus)), zap.Int("steps", len(result.Steps)))
	return result
}

// capture takes the end-of-scenario screenshot. Failures are logged only.
func (r *Runner) capture(ctx context.Context, page schemas.PageHandle, logger *zap.Logger) []byte {
	shotCtx := ctx
	if r.cfg.ScreenshotTimeout > 0 {
		var cancel context.CancelFunc
		shotCtx, cancel = context.WithTimeout(ctx, r.cfg.ScreenshotTimeout)
		defer cancel()
	}
	png, err := page.Screenshot(shotCtx)
	if err != nil {
		logger.Warn("Failed to capture screenshot.", zap.Error(err))
		return nil
	}
	return png
}
