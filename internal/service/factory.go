// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/discovery"
	"github.com/xkilldash9x/pagepilot/internal/executor"
	"github.com/xkilldash9x/pagepilot/internal/interpreter"
	"github.com/xkilldash9x/pagepilot/internal/llmclient"
	"github.com/xkilldash9x/pagepilot/internal/runner"
)

// ComponentFactory creates the set of components needed for runs. Commands
// depend on the interface so they can be tested without a browser.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires store, oracle, browser manager and runner. Partially created
// components are shut down when a later step fails.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (components *Components, err error) {
	components = &Components{logger: logger}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			components.Shutdown()
			components = nil
		}
	}()

	// 1. Saved-scenario store.
	store, closeStore, err := InitializeStore(ctx, cfg.Database(), logger)
	if err != nil {
		return nil, err
	}
	components.Store = store
	components.closeStore = closeStore

	// 2. Oracle client and scenario generator.
	llm, err := InitializeLLMClient(ctx, cfg.Agent().LLM, logger)
	if err != nil {
		return nil, err
	}
	components.LLM = llm
	generator := llmclient.NewGenerator(llm, cfg.Agent().LLM, cfg.Runner().MaxScenarios, logger)

	// 3. Browser sessions. Launching is deferred to the first Acquire.
	components.Browser = browser.NewManager(cfg, logger)
	logger.Debug("Browser manager initialized.", zap.String("mode", components.Browser.Mode()))

	// 4. Runner.
	interp := interpreter.New(interpreter.WithDefaultWait(cfg.Runner().DefaultWait))
	r, err := runner.New(cfg.Runner(), runner.Dependencies{
		Sessions:    components.Browser,
		Extractor:   discovery.NewExtractor(cfg.Discovery(), logger),
		Generator:   generator,
		Interpreter: interp,
		Executor:    executor.New(cfg.Executor(), logger),
	}, logger, runner.WithObserver(TransitionLogger(logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	components.Runner = r

	logger.Info("All components initialized successfully.")
	return components, nil
}

// TransitionLogger reports runner state changes at debug level.
func TransitionLogger(logger *zap.Logger) runner.Observer {
	logger = logger.Named("fsm")
	return func(t runner.Transition) {
		logger.Debug("State transition.",
			zap.String("run_id", t.RunID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Int("scenario", t.Scenario),
		)
	}
}
