package schemas

import (
	"context"
	"time"
)

// -- Browser Interfaces --

// PageHandle is the single active page of a browser session. Every method that
// talks to the browser is bounded by the context it receives.
type PageHandle interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitForIdle blocks until the DOM is ready and the network has been quiet
	// for a short period, or until timeout elapses.
	WaitForIdle(ctx context.Context, timeout time.Duration) error
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Location returns the current document URL.
	Location(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// BodyText returns the rendered text of the document body.
	BodyText(ctx context.Context) (string, error)
	// Elements returns a snapshot of the interactive elements on the page.
	Elements(ctx context.Context) ([]ElementInfo, error)
	// Fill replaces the value of the element addressed by selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the element addressed by selector.
	Click(ctx context.Context, selector string) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Closed reports whether the owning session has been released.
	Closed() bool
}

// BrowserSession exclusively owns one browser process/connection and one page.
type BrowserSession interface {
	ID() string
	// Mode names the launch strategy that produced the session.
	Mode() string
	Page() PageHandle
}

// SessionProvider acquires and releases browser sessions. Every successful
// Acquire must be paired with exactly one Release.
type SessionProvider interface {
	Acquire(ctx context.Context) (BrowserSession, error)
	Release(session BrowserSession) error
}

// -- Scenario Interfaces --

// ScenarioGenerator turns a page context into candidate test scenarios.
type ScenarioGenerator interface {
	Generate(ctx context.Context, pageCtx PageContext) ([]Scenario, error)
}

// ScenarioStore persists reusable scenarios. Create returns (nil, nil) for a
// duplicate and Update returns (nil, nil) when the id does not exist.
type ScenarioStore interface {
	GetAllSavedScenarios(ctx context.Context) ([]SavedScenario, error)
	GetSavedScenariosByURL(ctx context.Context, url string) ([]SavedScenario, error)
	CreateSavedScenario(ctx context.Context, in SavedScenarioInput) (*SavedScenario, error)
	UpdateSavedScenario(ctx context.Context, id string, upd SavedScenarioUpdate) (*SavedScenario, error)
}

// -- LLM Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls the text generation process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxTokens       int     `json:"max_tokens"`
}

// GenerationRequest encapsulates a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
