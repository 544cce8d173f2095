// internal/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const target = "https://acme.test/login"

func loginElements() []schemas.ElementInfo {
	return []schemas.ElementInfo{
		{Selector: "#email", Tag: "input", Type: "email", Name: "email", ID: "email", Placeholder: "you@example.com", Label: "Email address", Visible: true},
		{Selector: "form > input:nth-of-type(2)", Tag: "input", Type: "password", Name: "password", Placeholder: "Password", Visible: true},
		{Selector: "form > button", Tag: "button", Type: "submit", Name: "submit", Text: "Sign in", Visible: true},
	}
}

func newLoginPage() *mocks.FakePage {
	return &mocks.FakePage{
		URL:       target,
		PageTitle: "Sign in",
		Body:      "Sign in\nEmail address\nPassword",
		Elems:     loginElements(),
	}
}

func newTestExecutor(t *testing.T) *Executor {
	return New(config.ExecutorConfig{
		VisibilityTimeout: 150 * time.Millisecond,
		SettleTimeout:     50 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		ActionTimeout:     time.Second,
	}, zaptest.NewLogger(t))
}

func ec(seq int, step string) ExecContext {
	return ExecContext{TargetURL: target, Sequence: seq, Step: step}
}

func TestExecute_Fill(t *testing.T) {
	page := newLoginPage()
	res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewFill("email", "x@y.com", false), ec(1, "Fill 'x@y.com' into 'email'"))

	assert.Equal(t, schemas.StepSucceeded, res.Status)
	assert.Equal(t, 1, res.Sequence)
	assert.Equal(t, "Fill 'x@y.com' into 'email'", res.Step)
	assert.Empty(t, res.Error)
	v, ok := page.FilledValue("#email")
	require.True(t, ok)
	assert.Equal(t, "x@y.com", v)
}

func TestExecute_TargetNotFound(t *testing.T) {
	page := newLoginPage()
	start := time.Now()
	res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewFill("shipping address", "1 Main St", false), ec(2, "Fill address"))

	assert.Equal(t, schemas.StepFailed, res.Status)
	assert.Equal(t, schemas.ErrCodeTargetNotFound, res.ErrorCode)
	assert.Contains(t, res.Error, "target not found")
	assert.Less(t, time.Since(start), 2*time.Second, "resolution is bounded by the visibility timeout")
	assert.Empty(t, page.Filled)
}

func TestExecute_WaitsForTargetToAppear(t *testing.T) {
	page := newLoginPage()
	page.Elems = nil

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(30 * time.Millisecond)
		page.SetElements(loginElements())
	}()

	res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewClick("submit"), ec(1, "Click submit"))
	<-done

	assert.Equal(t, schemas.StepSucceeded, res.Status)
	assert.Equal(t, 1, page.ClickCount())
}

func TestExecute_Click(t *testing.T) {
	t.Run("settle failure is tolerated", func(t *testing.T) {
		page := newLoginPage()
		page.IdleErr = context.DeadlineExceeded

		res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewClick("submit"), ec(1, "Click submit"))
		assert.Equal(t, schemas.StepSucceeded, res.Status)
		assert.Equal(t, []string{"form > button"}, page.Clicks)
		assert.Equal(t, 1, page.IdleWaits)
	})

	t.Run("driver error fails the step", func(t *testing.T) {
		page := newLoginPage()
		page.ClickErr = errors.New("node is detached")

		res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewClick("Sign in"), ec(1, "Click sign in"))
		assert.Equal(t, schemas.StepFailed, res.Status)
		assert.Equal(t, schemas.ErrCodeExecutionFailure, res.ErrorCode)
		assert.Contains(t, res.Error, "node is detached")
	})

	t.Run("panics are contained", func(t *testing.T) {
		page := newLoginPage()
		page.PanicOnClick = true

		var res schemas.StepResult
		require.NotPanics(t, func() {
			res = newTestExecutor(t).Execute(context.Background(), page, schemas.NewClick("submit"), ec(3, "Click submit"))
		})
		assert.Equal(t, schemas.StepFailed, res.Status)
		assert.Equal(t, schemas.ErrCodeExecutorPanic, res.ErrorCode)
		assert.Contains(t, res.Error, "driver exploded")
		assert.Equal(t, 3, res.Sequence)
	})
}

func TestExecute_Navigate(t *testing.T) {
	page := newLoginPage()
	page.URL = "https://acme.test/elsewhere"

	res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewNavigate(), ec(1, "Reload the page"))
	assert.Equal(t, schemas.StepSucceeded, res.Status)
	assert.Equal(t, []string{target}, page.Navigations)

	page.NavigateErr = errors.New("net::ERR_CONNECTION_REFUSED")
	res = newTestExecutor(t).Execute(context.Background(), page, schemas.NewNavigate(), ec(2, "Reload the page"))
	assert.Equal(t, schemas.StepFailed, res.Status)
	assert.Equal(t, schemas.ErrCodeNavigationError, res.ErrorCode)
}

func TestExecute_WaitForLoad(t *testing.T) {
	page := newLoginPage()
	page.IdleErr = context.DeadlineExceeded
	res := newTestExecutor(t).Execute(context.Background(), page, schemas.NewWaitForLoad(20), ec(1, "Wait"))
	assert.Equal(t, schemas.StepSucceeded, res.Status, "reaching the bound is not a failure")

	page.Close()
	res = newTestExecutor(t).Execute(context.Background(), page, schemas.NewWaitForLoad(20), ec(2, "Wait"))
	assert.Equal(t, schemas.StepFailed, res.Status)
	assert.Contains(t, res.Error, schemas.ErrPageClosed.Error())
}

func TestExecute_Assert(t *testing.T) {
	cases := []struct {
		name   string
		action schemas.Action
		status schemas.StepStatus
		errMsg string
	}{
		{"text present ignores case and spacing", schemas.NewAssert(schemas.ConditionTextPresent, "email   ADDRESS"), schemas.StepSucceeded, ""},
		{"text present missing", schemas.NewAssert(schemas.ConditionTextPresent, "Welcome back"), schemas.StepFailed, `expected text "Welcome back" to be present`},
		{"text absent holds", schemas.NewAssert(schemas.ConditionTextAbsent, "Invalid password"), schemas.StepSucceeded, ""},
		{"text absent violated", schemas.NewAssert(schemas.ConditionTextAbsent, "Password"), schemas.StepFailed, "to be absent"},
		{"url contains", schemas.NewAssert(schemas.ConditionURLContains, "/login"), schemas.StepSucceeded, ""},
		{"title mismatch", schemas.NewAssert(schemas.ConditionTitleContains, "Dashboard"), schemas.StepFailed, `got "Sign in"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newTestExecutor(t).Execute(context.Background(), newLoginPage(), tc.action, ec(1, tc.name))
			assert.Equal(t, tc.status, res.Status)
			if tc.errMsg != "" {
				assert.Equal(t, schemas.ErrCodeAssertionFailed, res.ErrorCode)
				assert.Contains(t, res.Error, tc.errMsg)
			}
		})
	}
}

func TestExecute_AssertObservesClickEffects(t *testing.T) {
	page := newLoginPage()
	page.OnClick = func(p *mocks.FakePage, _ string) { p.SetBody("Welcome back, x@y.com") }
	exec := newTestExecutor(t)

	require.Equal(t, schemas.StepSucceeded, exec.Execute(context.Background(), page, schemas.NewClick("submit"), ec(1, "Click submit")).Status)
	res := exec.Execute(context.Background(), page, schemas.NewAssert(schemas.ConditionTextPresent, "welcome back"), ec(2, "Verify welcome"))
	assert.Equal(t, schemas.StepSucceeded, res.Status)
}

func TestExecute_NonActionOutcomes(t *testing.T) {
	exec := newTestExecutor(t)

	t.Run("unrecognized is skipped", func(t *testing.T) {
		res := exec.Execute(context.Background(), newLoginPage(), schemas.NewUnrecognized("Admire the logo"), ec(1, "Admire the logo"))
		assert.Equal(t, schemas.StepSkipped, res.Status)
		assert.Equal(t, schemas.ErrCodeUnrecognizedStep, res.ErrorCode)
	})

	t.Run("invalid action", func(t *testing.T) {
		res := exec.Execute(context.Background(), newLoginPage(), schemas.Action{Kind: schemas.ActionClick}, ec(1, "Click"))
		assert.Equal(t, schemas.StepFailed, res.Status)
		assert.Equal(t, schemas.ErrCodeInvalidAction, res.ErrorCode)
	})

	t.Run("canceled run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := exec.Execute(ctx, newLoginPage(), schemas.NewClick("submit"), ec(1, "Click submit"))
		assert.Equal(t, schemas.StepFailed, res.Status)
		assert.Equal(t, schemas.ErrCodeCanceled, res.ErrorCode)
	})

	t.Run("closed page fails fast", func(t *testing.T) {
		page := newLoginPage()
		page.Close()
		start := time.Now()
		res := exec.Execute(context.Background(), page, schemas.NewFill("email", "a@b.c", false), ec(1, "Fill email"))
		assert.Equal(t, schemas.StepFailed, res.Status)
		assert.Equal(t, schemas.ErrCodeExecutionFailure, res.ErrorCode)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})
}
