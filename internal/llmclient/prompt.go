// internal/llmclient/prompt.go
package llmclient

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// systemPrompt fixes the output contract and the step grammar the
// interpreter understands.
const systemPrompt = `You are a QA engineer writing end-to-end functional tests for a web page.
You receive a JSON description of the page: its title, URL, forms with their fields, and navigation links.

Respond with JSON only, in this exact shape:
{"scenarios": [{"title": "...", "user_story": "As a ..., I want ..., so that ...", "steps": ["...", "..."]}]}

Write every step as one short imperative sentence using only these forms:
- Fill 'value' into 'field'      (use the field's name or placeholder; omit the value to let the runner pick a realistic one)
- Click 'control'                (a button or link by its visible text, or "Click submit")
- Navigate to the page           (reload the page under test)
- Wait 2 seconds
- Verify 'text' is displayed     (or: is not displayed, URL contains 'x', title contains 'x')

Only reference fields and controls that exist in the page description. Do not invent credentials for real accounts.`

// BuildRequest renders the page context into a generation request.
func BuildRequest(pageCtx schemas.PageContext, cfg config.LLMConfig, maxScenarios int) (schemas.GenerationRequest, error) {
	pageJSON, err := json.MarshalIndent(pageCtx, "", "  ")
	if err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("failed to encode page context: %w", err)
	}

	var user strings.Builder
	user.WriteString("Page under test:\n")
	user.Write(pageJSON)
	user.WriteString("\n\n")
	if maxScenarios > 0 {
		fmt.Fprintf(&user, "Propose at most %d scenarios. ", maxScenarios)
	}
	user.WriteString("Cover the main purpose of each form, including one negative case where it makes sense.")

	return schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   user.String(),
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     float64(cfg.Temperature),
			ForceJSONFormat: true,
			MaxTokens:       cfg.MaxTokens,
		},
	}, nil
}
