// internal/browser/session.go
package browser

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Session owns one browser process and its single tab. It is used by exactly
// one run and must be handed back through Manager.Release.
type Session struct {
	id     string
	mode   string
	page   *Page
	logger *zap.Logger

	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	onClose   func()
}

var _ schemas.BrowserSession = (*Session)(nil)

func (s *Session) ID() string               { return s.id }
func (s *Session) Mode() string             { return s.mode }
func (s *Session) Page() schemas.PageHandle { return s.page }

// close tears down the tab and then the browser process. It is idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")
		if s.page != nil {
			s.page.markClosed()
		}
		// Canceling the tab first lets chromedp close the target cleanly; the
		// allocator cancel then waits for the process to exit.
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
}
