// internal/browser/idle.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// idleCheckFrequency bounds how often WaitIdle samples the in-flight count.
const idleCheckFrequency = 50 * time.Millisecond

// idleTracker counts in-flight requests from CDP network events. The page is
// idle once nothing has been in flight for a full quiet period.
type idleTracker struct {
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newIdleTracker(logger *zap.Logger) *idleTracker {
	return &idleTracker{
		logger:       logger.Named("idle"),
		now:          time.Now,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

// handle is registered with chromedp.ListenTarget.
func (t *idleTracker) handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Long-lived streams would keep the page busy forever.
		if e.Type == network.ResourceTypeWebSocket || e.Type == network.ResourceTypeEventSource {
			return
		}
		t.start(e.RequestID)
	case *network.EventLoadingFinished:
		t.finish(e.RequestID)
	case *network.EventLoadingFailed:
		t.finish(e.RequestID)
	}
}

func (t *idleTracker) start(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A redirect reuses the request ID, so this stays a single entry.
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *idleTracker) finish(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.lastActivity = t.now()
}

// Inflight returns the number of outstanding requests.
func (t *idleTracker) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *idleTracker) quietFor(quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastActivity) >= quiet
}

// reset forgets earlier activity; called before a navigation so requests of
// the previous document cannot satisfy the next wait.
func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = make(map[network.RequestID]struct{})
	t.lastActivity = t.now()
}

// WaitIdle blocks until the network has been quiet for the given period or
// ctx is done.
func (t *idleTracker) WaitIdle(ctx context.Context, quiet time.Duration) error {
	if t.quietFor(quiet) {
		return nil
	}
	interval := quiet / 4
	if interval <= 0 || interval > idleCheckFrequency {
		interval = idleCheckFrequency
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Network idle wait ended before the page settled.",
				zap.Int("inflight_requests", t.Inflight()), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			if t.quietFor(quiet) {
				return nil
			}
		}
	}
}
