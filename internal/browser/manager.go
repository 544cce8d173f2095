// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

var errForeignSession = errors.New("session was not acquired from this manager")

// Manager hands out independent browser sessions. The launch strategy is
// chosen once, when the Manager is created.
type Manager struct {
	logger   *zap.Logger
	cfg      config.Interface
	launcher Launcher

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

var _ schemas.SessionProvider = (*Manager)(nil)

// NewManager selects the launch strategy from configuration and the process
// environment.
func NewManager(cfg config.Interface, logger *zap.Logger) *Manager {
	return NewManagerWithLauncher(cfg, NewLauncher(cfg.Browser(), OSEnvironment()), logger)
}

// NewManagerWithLauncher uses an explicit launch strategy.
func NewManagerWithLauncher(cfg config.Interface, launcher Launcher, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		launcher: launcher,
		sessions: make(map[string]*Session),
	}
	m.logger.Info("Browser manager created.", zap.String("mode", launcher.Mode()))
	return m
}

// Mode reports the selected launch strategy.
func (m *Manager) Mode() string { return m.launcher.Mode() }

// Acquire launches a fresh browser and opens its tab. Launch problems are
// reported as *schemas.LaunchError and are never retried.
func (m *Manager) Acquire(ctx context.Context) (schemas.BrowserSession, error) {
	mode := m.launcher.Mode()

	// 1. Build the launch plan. A missing binary fails here.
	plan, err := m.launcher.Plan()
	if err != nil {
		var le *schemas.LaunchError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &schemas.LaunchError{Mode: mode, Err: err}
	}

	id := uuid.NewString()
	logger := m.logger.With(zap.String("session_id", id), zap.String("mode", mode))

	// 2. Start the process under a detached context so it lives until Release,
	// not until the caller's request ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), plan.AllocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	idle := newIdleTracker(logger)
	chromedp.ListenTarget(tabCtx, idle.handle)

	s := &Session{
		id:          id,
		mode:        mode,
		page:        newPage(tabCtx, idle, m.cfg.Network(), logger),
		logger:      logger,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	// 3. The first Run starts the browser. It is raced against the launch
	// timeout instead of being given a derived context, because canceling the
	// first Run's context would close the tab.
	if err := m.start(ctx, tabCtx, m.cfg.Browser().LaunchTimeout); err != nil {
		s.close()
		return nil, &schemas.LaunchError{Mode: mode, Err: err}
	}

	m.wg.Add(1)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		m.wg.Done()
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("Browser session acquired.", zap.String("exec_path", plan.ExecPath))
	return s, nil
}

func (m *Manager) start(ctx, tabCtx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, network.Enable())
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("browser failed to start or respond: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("browser did not respond within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release closes the session's tab and process. Releasing twice is a no-op.
func (m *Manager) Release(session schemas.BrowserSession) error {
	if session == nil {
		return nil
	}
	s, ok := session.(*Session)
	if !ok {
		return errForeignSession
	}
	s.close()
	m.logger.Info("Browser session released.", zap.String("session_id", s.ID()))
	return nil
}

// Active returns the number of sessions not yet released.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown releases every outstanding session and waits for them to close,
// bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	if len(open) > 0 {
		m.logger.Warn("Releasing sessions left open at shutdown.", zap.Int("count", len(open)))
	}
	for _, s := range open {
		s.close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for browser sessions to close: %w", ctx.Err())
	}
}
