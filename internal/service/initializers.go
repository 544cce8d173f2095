// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/llmclient"
	"github.com/xkilldash9x/pagepilot/internal/store"
)

// InitializeStore connects to PostgreSQL, or falls back to the in-memory
// store when no database URL is configured. The returned cleanup may be nil.
func InitializeStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (schemas.ScenarioStore, func(), error) {
	if cfg.URL == "" {
		logger.Warn("No database configured; saved scenarios are kept in memory and lost on exit.")
		return store.NewMemory(), nil, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("PostgreSQL scenario store ready.", zap.String("host", poolConfig.ConnConfig.Host))

	cleanup := func() {
		logger.Info("Closing PostgreSQL connection pool.")
		pool.Close()
	}
	return s, cleanup, nil
}

// InitializeLLMClient creates the oracle client selected by the configuration.
func InitializeLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	llmClient, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client. Scenario generation is unavailable.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return llmClient, nil
}

// SaveScenarios persists scenarios for url. Duplicates are skipped and only the
// newly created records are returned.
func SaveScenarios(ctx context.Context, st schemas.ScenarioStore, url string, scenarios []schemas.Scenario, logger *zap.Logger) ([]schemas.SavedScenario, error) {
	saved := []schemas.SavedScenario{}
	for _, sc := range scenarios {
		rec, err := st.CreateSavedScenario(ctx, schemas.SavedScenarioInput{
			URL:       url,
			Title:     sc.Title,
			UserStory: sc.UserStory,
			Steps:     sc.Steps,
		})
		if err != nil {
			return saved, fmt.Errorf("failed to save scenario %q: %w", sc.Title, err)
		}
		if rec == nil {
			logger.Debug("Scenario already saved; skipping.", zap.String("title", sc.Title))
			continue
		}
		saved = append(saved, *rec)
	}
	logger.Info("Saved scenarios.", zap.Int("created", len(saved)), zap.Int("skipped", len(scenarios)-len(saved)))
	return saved, nil
}
