// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/browser"
	"github.com/xkilldash9x/pagepilot/internal/runner"
)

// Components holds everything a run needs, and owns their lifecycle.
type Components struct {
	Store   schemas.ScenarioStore
	Browser *browser.Manager
	LLM     schemas.LLMClient
	Runner  *runner.Runner

	closeStore func()
	logger     *zap.Logger
}

// Shutdown closes all components in reverse order of creation.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Browsers first; they may hold live sessions.
	if c.Browser != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Browser.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 2. Oracle client.
	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}

	// 3. Store connection pool.
	if c.closeStore != nil {
		c.closeStore()
		logger.Debug("Scenario store closed.")
	}

	logger.Info("All components shut down.")
}
