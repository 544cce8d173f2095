// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

const defaultPollInterval = 250 * time.Millisecond

// ExecContext carries the run-level facts an action may need.
type ExecContext struct {
	// TargetURL is the page under test; Navigate always returns to it.
	TargetURL string
	// Sequence is the 1-based position of the step within its scenario.
	Sequence int
	// Step is the natural-language text the action came from.
	Step string
}

// handler applies one action variant to the page.
type handler func(ctx context.Context, page schemas.PageHandle, action schemas.Action, ec ExecContext) error

// Executor applies typed actions to a live page. It never returns an error or
// panics past Execute: every outcome is a StepResult.
type Executor struct {
	cfg      config.ExecutorConfig
	logger   *zap.Logger
	handlers map[schemas.ActionKind]handler
}

// New creates an Executor.
func New(cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	e := &Executor{
		cfg:      cfg,
		logger:   logger.Named("executor"),
		handlers: make(map[schemas.ActionKind]handler),
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[schemas.ActionFill] = e.handleFill
	e.handlers[schemas.ActionClick] = e.handleClick
	e.handlers[schemas.ActionNavigate] = e.handleNavigate
	e.handlers[schemas.ActionWaitForLoad] = e.handleWaitForLoad
	e.handlers[schemas.ActionAssert] = e.handleAssert
}

// Execute runs one action and reports its outcome.
func (e *Executor) Execute(ctx context.Context, page schemas.PageHandle, action schemas.Action, ec ExecContext) (result schemas.StepResult) {
	start := time.Now()
	result = schemas.StepResult{Sequence: ec.Sequence, Step: ec.Step, Action: action}
	logger := e.logger.With(zap.Int("sequence", ec.Sequence), zap.String("action", action.String()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic while executing step.", zap.Any("panic_value", r), zap.Stack("stack"))
			result.Status = schemas.StepFailed
			result.ErrorCode = schemas.ErrCodeExecutorPanic
			result.Error = fmt.Sprintf("internal error while executing step: %v", r)
		}
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	if action.Kind == schemas.ActionUnrecognized {
		result.Status = schemas.StepSkipped
		result.ErrorCode = schemas.ErrCodeUnrecognizedStep
		result.Error = "step did not match any known action"
		logger.Info("Skipping unrecognized step.", zap.String("step", ec.Step))
		return result
	}
	if err := action.Validate(); err != nil {
		return failed(result, schemas.ErrCodeInvalidAction, err)
	}
	if err := ctx.Err(); err != nil {
		return failed(result, schemas.ErrCodeCanceled, err)
	}

	h, ok := e.handlers[action.Kind]
	if !ok {
		return failed(result, schemas.ErrCodeInvalidAction, fmt.Errorf("no handler for action kind %q", action.Kind))
	}

	if err := h(ctx, page, action, ec); err != nil {
		code := classify(ctx, err)
		logger.Warn("Step failed.", zap.String("error_code", string(code)), zap.Error(err))
		return failed(result, code, err)
	}
	result.Status = schemas.StepSucceeded
	logger.Debug("Step succeeded.")
	return result
}

func failed(result schemas.StepResult, code schemas.ErrorCode, err error) schemas.StepResult {
	result.Status = schemas.StepFailed
	result.ErrorCode = code
	result.Error = err.Error()
	return result
}

// stepError tags a handler error with a specific code.
type stepError struct {
	code schemas.ErrorCode
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func withCode(code schemas.ErrorCode, err error) error {
	return &stepError{code: code, err: err}
}

func classify(ctx context.Context, err error) schemas.ErrorCode {
	var se *stepError
	switch {
	case errors.As(err, &se):
		return se.code
	case errors.Is(err, schemas.ErrTargetNotFound):
		return schemas.ErrCodeTargetNotFound
	case ctx.Err() != nil:
		return schemas.ErrCodeCanceled
	default:
		return schemas.ErrCodeExecutionFailure
	}
}
