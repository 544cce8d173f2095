// api/schemas/scenario.go
package schemas

import (
	"strings"
	"time"
)

// -- Scenario Schemas --

// Scenario is a named, ordered list of natural-language test steps proposed by
// the oracle. It is treated as immutable once generated.
type Scenario struct {
	Title     string   `json:"title"`
	UserStory string   `json:"user_story,omitempty"`
	Steps     []string `json:"steps"`
}

// SavedScenario is a reusable scenario kept by the external scenario store.
type SavedScenario struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	UserStory string    `json:"user_story"`
	Steps     []string  `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scenario converts the stored record back into a runnable scenario.
func (s SavedScenario) Scenario() Scenario {
	steps := make([]string, len(s.Steps))
	copy(steps, s.Steps)
	return Scenario{Title: s.Title, UserStory: s.UserStory, Steps: steps}
}

// SavedScenarioInput carries the fields accepted by CreateSavedScenario.
type SavedScenarioInput struct {
	URL       string   `json:"url,omitempty"`
	Title     string   `json:"title"`
	UserStory string   `json:"user_story"`
	Steps     []string `json:"steps"`
}

// SavedScenarioUpdate carries the fields accepted by UpdateSavedScenario.
// Steps are required and replace the stored steps; nil pointers leave the
// stored value untouched.
type SavedScenarioUpdate struct {
	Steps     []string `json:"steps"`
	Title     *string  `json:"title,omitempty"`
	UserStory *string  `json:"user_story,omitempty"`
}

// StoryKey normalizes a natural-language user story so that stories differing
// only in case, punctuation or spacing compare equal.
func StoryKey(story string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(story) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
