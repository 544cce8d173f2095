// internal/llmclient/generator.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// maxRetries is the number of retries after the first attempt.
const maxRetries = 1

// ErrEmptyResponse is returned by providers when the model answers without
// any text. Retrying the same prompt does not change that.
var ErrEmptyResponse = errors.New("oracle returned an empty response")

// Generator turns a PageContext into scenarios through an LLMClient. It owns
// the timeout, retry, and rate-limit policy so providers stay thin.
type Generator struct {
	client       schemas.LLMClient
	cfg          config.LLMConfig
	maxScenarios int
	limiter      *rate.Limiter
	logger       *zap.Logger
}

var _ schemas.ScenarioGenerator = (*Generator)(nil)

// NewGenerator wraps client. maxScenarios <= 0 keeps every valid scenario.
func NewGenerator(client schemas.LLMClient, cfg config.LLMConfig, maxScenarios int, logger *zap.Logger) *Generator {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Generator{
		client:       client,
		cfg:          cfg,
		maxScenarios: maxScenarios,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.Named("scenario_generator"),
	}
}

// Generate asks the oracle for scenarios. Transient failures are retried once
// with backoff; client errors and empty answers are not. A final failure, or a
// response that cannot be decoded at all, is a *schemas.GenerationError. An empty list is returned as-is.
func (g *Generator) Generate(ctx context.Context, pageCtx schemas.PageContext) ([]schemas.Scenario, error) {
	req, err := BuildRequest(pageCtx, g.cfg, g.maxScenarios)
	if err != nil {
		return nil, &schemas.GenerationError{Err: err}
	}

	raw, attempts, err := g.call(ctx, req)
	if err != nil {
		return nil, &schemas.GenerationError{Attempts: attempts, Err: err}
	}

	scenarios, rejected, err := ParseScenarios(raw)
	if err != nil {
		return nil, &schemas.GenerationError{Attempts: attempts, Err: err}
	}
	for _, r := range rejected {
		g.logger.Warn("Dropping malformed scenario from oracle.",
			zap.Int("index", r.Index),
			zap.String("title", r.Title),
			zap.String("reason", r.Reason),
		)
	}
	if g.maxScenarios > 0 && len(scenarios) > g.maxScenarios {
		scenarios = scenarios[:g.maxScenarios]
	}

	g.logger.Info("Scenarios generated.",
		zap.Int("accepted", len(scenarios)),
		zap.Int("rejected", len(rejected)),
		zap.Int("attempts", attempts),
	)
	return scenarios, nil
}

// call performs the bounded, rate-limited request with a single retry.
func (g *Generator) call(ctx context.Context, req schemas.GenerationRequest) (string, int, error) {
	b := backoff.NewExponentialBackOff()
	if g.cfg.RetryBackoff > 0 {
		b.InitialInterval = g.cfg.RetryBackoff
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)

	var (
		attempts int
		response string
	)
	operation := func() error {
		attempts++
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("waiting for rate limiter: %w", err))
		}

		callCtx, cancel := g.withTimeout(ctx)
		defer cancel()

		out, err := g.client.Generate(callCtx, req)
		if err != nil {
			// The caller gave up; retrying cannot help.
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		response = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.logger.Warn("Oracle call failed, retrying.", zap.Error(err), zap.Duration("backoff", wait))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", attempts, err
	}
	return response, attempts, nil
}

// isPermanent reports whether err is a failure a retry cannot fix: an empty
// answer, or a 4xx status other than request timeout and rate limiting.
func isPermanent(err error) bool {
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return permanentStatus(geminiErr.Code)
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return permanentStatus(anthropicErr.StatusCode)
	}
	return false
}

func permanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

func (g *Generator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.Timeout)
}
