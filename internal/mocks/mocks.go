// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error { return m.Called().Error(0) }

// -- Scenario Generator Mock --

// MockScenarioGenerator mocks schemas.ScenarioGenerator.
type MockScenarioGenerator struct {
	mock.Mock
}

func (m *MockScenarioGenerator) Generate(ctx context.Context, pageCtx schemas.PageContext) ([]schemas.Scenario, error) {
	args := m.Called(ctx, pageCtx)
	if s := args.Get(0); s != nil {
		return s.([]schemas.Scenario), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Browser Mocks --

// MockSessionProvider mocks schemas.SessionProvider.
type MockSessionProvider struct {
	mock.Mock
}

func (m *MockSessionProvider) Acquire(ctx context.Context) (schemas.BrowserSession, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(schemas.BrowserSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionProvider) Release(session schemas.BrowserSession) error {
	return m.Called(session).Error(0)
}

// StubSession is a BrowserSession wrapping a fixed page.
type StubSession struct {
	SessionID string
	PageImpl  schemas.PageHandle
}

func (s *StubSession) ID() string               { return s.SessionID }
func (s *StubSession) Mode() string             { return "stub" }
func (s *StubSession) Page() schemas.PageHandle { return s.PageImpl }

// -- Store Mock --

// MockScenarioStore mocks schemas.ScenarioStore.
type MockScenarioStore struct {
	mock.Mock
}

func (m *MockScenarioStore) GetAllSavedScenarios(ctx context.Context) ([]schemas.SavedScenario, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.([]schemas.SavedScenario), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScenarioStore) GetSavedScenariosByURL(ctx context.Context, url string) ([]schemas.SavedScenario, error) {
	args := m.Called(ctx, url)
	if s := args.Get(0); s != nil {
		return s.([]schemas.SavedScenario), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScenarioStore) CreateSavedScenario(ctx context.Context, in schemas.SavedScenarioInput) (*schemas.SavedScenario, error) {
	args := m.Called(ctx, in)
	if s := args.Get(0); s != nil {
		return s.(*schemas.SavedScenario), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScenarioStore) UpdateSavedScenario(ctx context.Context, id string, upd schemas.SavedScenarioUpdate) (*schemas.SavedScenario, error) {
	args := m.Called(ctx, id, upd)
	if s := args.Get(0); s != nil {
		return s.(*schemas.SavedScenario), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Fake Page --

// FakePage is an in-memory PageHandle. Fill and Click record what they were
// asked to do, and the Err fields inject failures per operation.
type FakePage struct {
	mu sync.Mutex

	URL       string
	PageTitle string
	Body      string
	Document  string
	Elems     []schemas.ElementInfo
	PNG       []byte

	NavigateErr   error
	IdleErr       error
	HTMLErr       error
	ElementsErr   error
	FillErr       error
	ClickErr      error
	ScreenshotErr error

	// OnClick runs after a successful click, e.g. to swap the document.
	OnClick func(p *FakePage, selector string)
	// PanicOnClick makes Click panic, standing in for a misbehaving driver.
	PanicOnClick bool

	Navigations []string
	Filled      map[string]string
	Clicks      []string
	IdleWaits   int
	closed      bool
}

var _ schemas.PageHandle = (*FakePage)(nil)

func (p *FakePage) check(ctx context.Context) error {
	if p.closed {
		return schemas.ErrPageClosed
	}
	return ctx.Err()
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.Navigations = append(p.Navigations, url)
	p.URL = url
	return nil
}

func (p *FakePage) WaitForIdle(ctx context.Context, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.IdleWaits++
	return p.IdleErr
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return "", err
	}
	return p.Document, p.HTMLErr
}

func (p *FakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, p.check(ctx)
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, p.check(ctx)
}

func (p *FakePage) BodyText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Body, p.check(ctx)
}

func (p *FakePage) Elements(ctx context.Context) ([]schemas.ElementInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if p.ElementsErr != nil {
		return nil, p.ElementsErr
	}
	out := make([]schemas.ElementInfo, len(p.Elems))
	copy(out, p.Elems)
	return out, nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	if p.FillErr != nil {
		return p.FillErr
	}
	if p.Filled == nil {
		p.Filled = make(map[string]string)
	}
	p.Filled[selector] = value
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	if err := p.check(ctx); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.PanicOnClick {
		p.mu.Unlock()
		panic("driver exploded")
	}
	if p.ClickErr != nil {
		p.mu.Unlock()
		return p.ClickErr
	}
	p.Clicks = append(p.Clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if p.PNG == nil {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	return p.PNG, nil
}

func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the page released.
func (p *FakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// SetBody replaces the rendered text, e.g. from an OnClick hook.
func (p *FakePage) SetBody(body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Body = body
}

// SetElements replaces the interactive element snapshot.
func (p *FakePage) SetElements(elems []schemas.ElementInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elems = elems
}

// FilledValue returns what was typed into selector.
func (p *FakePage) FilledValue(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.Filled[selector]
	return v, ok
}

// ClickCount returns the number of successful clicks.
func (p *FakePage) ClickCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Clicks)
}
