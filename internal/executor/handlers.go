// internal/executor/handlers.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

func (e *Executor) handleFill(ctx context.Context, page schemas.PageHandle, action schemas.Action, _ ExecContext) error {
	el, err := e.resolve(ctx, page, action.SelectorHint, schemas.ActionFill)
	if err != nil {
		return err
	}
	actionCtx, cancel := e.actionContext(ctx)
	defer cancel()
	if err := page.Fill(actionCtx, el.Selector, action.Value); err != nil {
		return fmt.Errorf("fill %s: %w", el.Selector, err)
	}
	return nil
}

// handleClick clicks and then waits for the page to settle. Not settling is
// tolerated: the click itself succeeded.
func (e *Executor) handleClick(ctx context.Context, page schemas.PageHandle, action schemas.Action, _ ExecContext) error {
	el, err := e.resolve(ctx, page, action.SelectorHint, schemas.ActionClick)
	if err != nil {
		return err
	}
	actionCtx, cancel := e.actionContext(ctx)
	defer cancel()
	if err := page.Click(actionCtx, el.Selector); err != nil {
		return fmt.Errorf("click %s: %w", el.Selector, err)
	}
	e.settle(ctx, page, e.cfg.SettleTimeout)
	return nil
}

func (e *Executor) handleNavigate(ctx context.Context, page schemas.PageHandle, _ schemas.Action, ec ExecContext) error {
	if ec.TargetURL == "" {
		return withCode(schemas.ErrCodeNavigationError, errors.New("no target URL to navigate to"))
	}
	if err := page.Navigate(ctx, ec.TargetURL); err != nil {
		return withCode(schemas.ErrCodeNavigationError, err)
	}
	e.settle(ctx, page, e.cfg.SettleTimeout)
	return nil
}

// handleWaitForLoad succeeds when the bound is reached; only a dead page or a
// canceled run fails it.
func (e *Executor) handleWaitForLoad(ctx context.Context, page schemas.PageHandle, action schemas.Action, _ ExecContext) error {
	timeout := time.Duration(action.TimeoutMs) * time.Millisecond
	err := page.WaitForIdle(ctx, timeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, schemas.ErrPageClosed), ctx.Err() != nil:
		return err
	default:
		e.logger.Debug("Wait bound reached before network idle.", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
}

func (e *Executor) handleAssert(ctx context.Context, page schemas.PageHandle, action schemas.Action, _ ExecContext) error {
	cond := *action.Condition
	var observed string

	met, err := e.poll(ctx, func(pollCtx context.Context) (bool, error) {
		var err error
		observed, err = observe(pollCtx, page, cond.Kind)
		if err != nil {
			return false, err
		}
		return holds(cond, observed), nil
	})
	if err != nil {
		return err
	}
	if !met {
		return withCode(schemas.ErrCodeAssertionFailed, errors.New(describeFailure(cond, observed)))
	}
	return nil
}

// observe reads the page property a condition is evaluated against.
func observe(ctx context.Context, page schemas.PageHandle, kind schemas.ConditionKind) (string, error) {
	switch kind {
	case schemas.ConditionURLContains:
		return page.Location(ctx)
	case schemas.ConditionTitleContains:
		return page.Title(ctx)
	default:
		return page.BodyText(ctx)
	}
}

// holds compares case-insensitively with whitespace collapsed, which is how
// a person reading the page would judge it.
func holds(cond schemas.Condition, observed string) bool {
	found := strings.Contains(fold(observed), fold(cond.Value))
	if cond.Kind == schemas.ConditionTextAbsent {
		return !found
	}
	return found
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func describeFailure(cond schemas.Condition, observed string) string {
	switch cond.Kind {
	case schemas.ConditionTextAbsent:
		return fmt.Sprintf("expected text %q to be absent, but it is on the page", cond.Value)
	case schemas.ConditionURLContains:
		return fmt.Sprintf("expected URL to contain %q, got %q", cond.Value, observed)
	case schemas.ConditionTitleContains:
		return fmt.Sprintf("expected title to contain %q, got %q", cond.Value, observed)
	default:
		return fmt.Sprintf("expected text %q to be present on the page", cond.Value)
	}
}
