// File: internal/service/factory_test.go
package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/mocks"
	"github.com/xkilldash9x/pagepilot/internal/runner"
	"github.com/xkilldash9x/pagepilot/internal/store"
)

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scenarios":[]}`), 0o600))

	cfg := config.NewDefaultConfig()
	cfg.AgentCfg.LLM.Provider = config.ProviderFixture
	cfg.AgentCfg.LLM.FixturePath = path
	return cfg
}

func TestComponentFactory_Create(t *testing.T) {
	t.Run("wires an in-memory deployment", func(t *testing.T) {
		components, err := NewComponentFactory().Create(context.Background(), fixtureConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, components)

		assert.IsType(t, &store.Memory{}, components.Store)
		assert.NotNil(t, components.Runner)
		assert.NotNil(t, components.LLM)
		require.NotNil(t, components.Browser)
		assert.Zero(t, components.Browser.Active(), "no browser is launched until a run starts")

		components.Shutdown()
	})

	t.Run("oracle misconfiguration fails and cleans up", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		cfg.AgentCfg.LLM.Provider = config.ProviderFixture
		cfg.AgentCfg.LLM.FixturePath = filepath.Join(t.TempDir(), "missing.json")

		components, err := NewComponentFactory().Create(context.Background(), cfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Nil(t, components)
		assert.Contains(t, err.Error(), "failed to initialize LLM client")
	})

	t.Run("bad database url", func(t *testing.T) {
		cfg := fixtureConfig(t)
		cfg.DatabaseCfg.URL = "postgres://user:pa ss@%%/db"

		_, err := NewComponentFactory().Create(context.Background(), cfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unable to parse PGX pool config")
	})
}

func TestInitializeStore_MemoryFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	st, cleanup, err := InitializeStore(context.Background(), config.DatabaseConfig{}, zap.New(core))
	require.NoError(t, err)
	assert.Nil(t, cleanup)
	assert.IsType(t, &store.Memory{}, st)
	assert.Equal(t, 1, logs.Len())
}

func TestSaveScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("skips duplicates", func(t *testing.T) {
		st := store.NewMemory()
		saved, err := SaveScenarios(ctx, st, target, loginPlan, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Len(t, saved, 2)

		saved, err = SaveScenarios(ctx, st, target, loginPlan, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Empty(t, saved)
	})

	t.Run("stops on store error", func(t *testing.T) {
		st := new(mocks.MockScenarioStore)
		first := &schemas.SavedScenario{ID: "1", URL: target, Title: loginPlan[0].Title}
		st.On("CreateSavedScenario", mock.Anything, mock.MatchedBy(func(in schemas.SavedScenarioInput) bool {
			return in.Title == loginPlan[0].Title && in.UserStory == loginPlan[0].UserStory
		})).Return(first, nil).Once()
		st.On("CreateSavedScenario", mock.Anything, mock.Anything).Return(nil, errors.New("disk full")).Once()

		saved, err := SaveScenarios(ctx, st, target, loginPlan, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"Empty password"`)
		assert.Len(t, saved, 1)
		st.AssertExpectations(t)
	})
}

func TestTransitionLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	observe := TransitionLogger(zap.New(core))
	observe(runner.Transition{RunID: "r1", From: runner.StateIdle, To: runner.StateExtracting, Scenario: -1})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "fsm", entry.LoggerName)
	assert.Equal(t, "extracting", entry.ContextMap()["to"])
}
