// internal/llmclient/factory_test.go
package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("gemini", func(t *testing.T) {
		cfg := testLLMConfig()
		cfg.APIKey = "test-key"
		client, err := NewClient(ctx, cfg, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		gc, ok := client.(*GeminiClient)
		require.True(t, ok)
		assert.NotNil(t, gc.client, "SDK client should be initialized")
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := testLLMConfig()
		cfg.Provider = config.ProviderAnthropic
		cfg.APIKey = "test-key"
		client, err := NewClient(ctx, cfg, logger)
		require.NoError(t, err)
		assert.IsType(t, &AnthropicClient{}, client)
	})

	t.Run("missing keys", func(t *testing.T) {
		for _, p := range []config.LLMProvider{config.ProviderGemini, config.ProviderAnthropic} {
			cfg := testLLMConfig()
			cfg.Provider = p
			_, err := NewClient(ctx, cfg, logger)
			assert.ErrorContains(t, err, "API key is required", string(p))
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testLLMConfig()
		cfg.Provider = "openai"
		_, err := NewClient(ctx, cfg, logger)
		assert.ErrorContains(t, err, "unknown or unsupported LLM provider")
	})

	t.Run("fixture must exist", func(t *testing.T) {
		cfg := config.LLMConfig{Provider: config.ProviderFixture, FixturePath: filepath.Join(t.TempDir(), "missing.json")}
		_, err := NewClient(ctx, cfg, logger)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFixtureClient_FeedsGenerator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(twoScenarios), 0o600))

	client, err := NewClient(context.Background(), config.LLMConfig{Provider: config.ProviderFixture, FixturePath: path}, zaptest.NewLogger(t))
	require.NoError(t, err)

	gen := NewGenerator(client, testLLMConfig(), 0, zaptest.NewLogger(t))
	scenarios, err := gen.Generate(context.Background(), loginContext())
	require.NoError(t, err)
	assert.Len(t, scenarios, 2)
}

// requestLog keeps the last request body seen by a test server.
type requestLog struct {
	mu   sync.Mutex
	body string
}

func (l *requestLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.body
}

// recordingServer answers with body and records each request body.
func recordingServer(t *testing.T, pathSuffix, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, pathSuffix) {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		b, _ := io.ReadAll(r.Body)
		seen.mu.Lock()
		seen.body = string(b)
		seen.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func testRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "be terse",
		UserPrompt:   "page: login",
		Options:      schemas.GenerationOptions{Temperature: 0.2, MaxTokens: 256, ForceJSONFormat: true},
	}
}

func TestAnthropicClient_Generate(t *testing.T) {
	srv, seen := recordingServer(t, "/v1/messages", `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [{"type": "text", "text": "[{\"title\":\"A\",\"steps\":[]}]"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`)

	cfg := testLLMConfig()
	cfg.Provider = config.ProviderAnthropic
	cfg.Model = "claude-test"
	cfg.APIKey = "test-key"
	cfg.Endpoint = srv.URL
	client, err := NewAnthropicClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"A","steps":[]}]`, out)
	assert.Contains(t, seen.last(), "page: login")
	assert.Contains(t, seen.last(), "be terse")
}

func TestGeminiClient_Generate(t *testing.T) {
	srv, seen := recordingServer(t, ":generateContent", `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"scenarios\":[]}"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 4, "totalTokenCount": 14}
	}`)

	cfg := testLLMConfig()
	cfg.APIKey = "test-key"
	cfg.Endpoint = srv.URL
	client, err := NewGeminiClient(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"scenarios":[]}`, out)
	assert.Contains(t, seen.last(), "page: login")
	assert.Contains(t, seen.last(), "application/json")
}
