// internal/browser/page.go
package browser

import (
	"context"
	_ "embed"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

//go:embed elements.js
var elementsScript string

const bodyTextScript = `document.body ? document.body.innerText : ""`

// Page is the single tab owned by a Session. Every method combines the tab
// context with the caller's context, so a caller deadline bounds the CDP call
// without closing the tab.
type Page struct {
	tabCtx  context.Context
	idle    *idleTracker
	network config.NetworkConfig
	logger  *zap.Logger
	closed  atomic.Bool
}

var _ schemas.PageHandle = (*Page)(nil)

func newPage(tabCtx context.Context, idle *idleTracker, netCfg config.NetworkConfig, logger *zap.Logger) *Page {
	return &Page{tabCtx: tabCtx, idle: idle, network: netCfg, logger: logger.Named("page")}
}

// run executes chromedp actions under both the tab and the caller's context.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.Closed() {
		return schemas.ErrPageClosed
	}
	opCtx, cancel := CombineContext(p.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the load event, bounded by the configured
// navigation timeout.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.network.NavigationTimeout)
	defer cancel()

	p.idle.reset()
	p.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitForIdle waits for a network-idle settle bounded by timeout. It returns
// the context error when the bound is reached first.
func (p *Page) WaitForIdle(ctx context.Context, timeout time.Duration) error {
	if p.Closed() {
		return schemas.ErrPageClosed
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.idle.WaitIdle(waitCtx, p.network.QuietPeriod)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return html, nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(bodyTextScript, &text))
	return text, err
}

// Elements snapshots the interactive elements of the current document.
func (p *Page) Elements(ctx context.Context) ([]schemas.ElementInfo, error) {
	var elements []schemas.ElementInfo
	if err := p.run(ctx, chromedp.Evaluate(elementsScript, &elements)); err != nil {
		return nil, fmt.Errorf("snapshot elements: %w", err)
	}
	return elements, nil
}

// Fill replaces the value of the element at selector.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Closed reports whether the tab is gone, either released or crashed.
func (p *Page) Closed() bool {
	return p.closed.Load() || p.tabCtx.Err() != nil
}

func (p *Page) markClosed() { p.closed.Store(true) }
