// internal/executor/wait.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// resolve polls the page until an element matching hint is visible, bounded
// by the visibility timeout.
func (e *Executor) resolve(ctx context.Context, page schemas.PageHandle, hint string, kind schemas.ActionKind) (schemas.ElementInfo, error) {
	var (
		found    schemas.ElementInfo
		tier     dom.Tier
		snapshot error
	)
	ok, err := e.poll(ctx, func(pollCtx context.Context) (bool, error) {
		elements, err := page.Elements(pollCtx)
		if err != nil {
			if errors.Is(err, schemas.ErrPageClosed) {
				return false, err
			}
			// A navigation in flight can make the snapshot fail; try again.
			snapshot = err
			return false, nil
		}
		var matched bool
		found, tier, matched = dom.Resolve(elements, hint, kind)
		return matched, nil
	})
	if err != nil {
		return schemas.ElementInfo{}, err
	}
	if !ok {
		if snapshot != nil {
			return schemas.ElementInfo{}, fmt.Errorf("%w: %q (last snapshot error: %v)", schemas.ErrTargetNotFound, hint, snapshot)
		}
		return schemas.ElementInfo{}, fmt.Errorf("%w: %q", schemas.ErrTargetNotFound, hint)
	}
	e.logger.Debug("Resolved selector hint.",
		zap.String("hint", hint),
		zap.String("selector", found.Selector),
		zap.Stringer("rule", tier),
	)
	return found, nil
}

// poll evaluates check until it reports true, returns an error, or the
// visibility timeout passes. Reaching the timeout is (false, nil); a canceled
// caller is (false, ctx.Err()).
func (e *Executor) poll(ctx context.Context, check func(context.Context) (bool, error)) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.VisibilityTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := check(waitCtx)
		if ok {
			return true, nil
		}
		if err != nil && waitCtx.Err() == nil {
			return false, err
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return false, err
			}
			return false, nil
		case <-ticker.C:
		}
	}
}

// settle waits best-effort for network idle. Failures are logged only.
func (e *Executor) settle(ctx context.Context, page schemas.PageHandle, timeout time.Duration) {
	if err := page.WaitForIdle(ctx, timeout); err != nil {
		e.logger.Debug("Page did not settle; continuing.", zap.Duration("timeout", timeout), zap.Error(err))
	}
}

func (e *Executor) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.ActionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.ActionTimeout)
}
