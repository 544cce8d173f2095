// internal/llmclient/parse.go
package llmclient

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/llmutil"
)

// rawScenario accepts the spellings models actually produce.
type rawScenario struct {
	Title     string            `json:"title"`
	Name      string            `json:"name"`
	UserStory string            `json:"user_story"`
	Story     string            `json:"userStory"`
	Steps     []json.RawMessage `json:"steps"`
}

type envelope struct {
	Scenarios []rawScenario `json:"scenarios"`
	TestPlan  []rawScenario `json:"testPlan"`
}

// Rejection explains why one proposed scenario was dropped.
type Rejection struct {
	Index  int
	Title  string
	Reason string
}

var errMissingSteps = errors.New("missing steps")

// ParseScenarios decodes an oracle response. Individual malformed scenarios
// are dropped and reported; only an undecodable payload is an error.
func ParseScenarios(response string) ([]schemas.Scenario, []Rejection, error) {
	payload := llmutil.ExtractJSON(response)

	var raws []rawScenario
	switch {
	case strings.HasPrefix(payload, "["):
		if err := json.Unmarshal([]byte(payload), &raws); err != nil {
			return nil, nil, fmt.Errorf("decode scenario list: %w", err)
		}
	case strings.HasPrefix(payload, "{"):
		env, err := llmutil.ParseJSONResponse[envelope](payload)
		if err != nil {
			return nil, nil, fmt.Errorf("decode scenario envelope: %w", err)
		}
		raws = append(env.Scenarios, env.TestPlan...)
		if len(raws) == 0 {
			// A lone scenario object.
			var single rawScenario
			if err := json.Unmarshal([]byte(payload), &single); err == nil && (single.Title != "" || single.Name != "") {
				raws = []rawScenario{single}
			}
		}
	default:
		return nil, nil, fmt.Errorf("oracle response is not JSON: %q", truncate(payload, 120))
	}

	scenarios := make([]schemas.Scenario, 0, len(raws))
	var rejected []Rejection
	for i, r := range raws {
		s, err := r.normalize()
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Title: s.Title, Reason: err.Error()})
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, rejected, nil
}

func (r rawScenario) normalize() (schemas.Scenario, error) {
	s := schemas.Scenario{
		Title:     strings.TrimSpace(firstNonEmpty(r.Title, r.Name)),
		UserStory: strings.TrimSpace(firstNonEmpty(r.UserStory, r.Story)),
	}
	if s.Title == "" {
		return s, errors.New("missing title")
	}
	if r.Steps == nil {
		return s, errMissingSteps
	}

	s.Steps = make([]string, 0, len(r.Steps))
	for i, raw := range r.Steps {
		step, err := stepText(raw)
		if err != nil {
			return s, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step != "" {
			s.Steps = append(s.Steps, step)
		}
	}
	return s, nil
}

// stepText accepts a plain string or an object carrying the sentence under a
// common key.
func stepText(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("not a string or object")
	}
	for _, key := range []string{"step", "description", "action", "text"} {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("object step without text")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
