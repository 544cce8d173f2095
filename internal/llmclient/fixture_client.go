// internal/llmclient/fixture_client.go
package llmclient

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// FixtureClient answers every prompt with the contents of a JSON file. It
// makes runs reproducible without network access to a model.
type FixtureClient struct {
	path   string
	logger *zap.Logger
}

var _ schemas.LLMClient = (*FixtureClient)(nil)

func NewFixtureClient(path string, logger *zap.Logger) (*FixtureClient, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scenario fixture: %w", err)
	}
	return &FixtureClient{path: path, logger: logger.Named("llm_client.fixture")}, nil
}

// Generate re-reads the file on every call so it can be edited between runs.
func (c *FixtureClient) Generate(ctx context.Context, _ schemas.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", fmt.Errorf("read scenario fixture: %w", err)
	}
	c.logger.Debug("Serving scenarios from fixture.", zap.String("path", c.path), zap.Int("bytes", len(data)))
	return string(data), nil
}

func (c *FixtureClient) Close() error { return nil }
