// internal/browser/dom/resolver.go
package dom

import (
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Tier records which rule produced a match. It is reported in logs so a
// surprising resolution can be traced back to its rule.
type Tier int

const (
	TierNone Tier = iota
	TierName
	TierID
	TierPlaceholder
	TierLabel
	TierSubmitHeuristic
)

func (t Tier) String() string {
	switch t {
	case TierName:
		return "name"
	case TierID:
		return "id"
	case TierPlaceholder:
		return "placeholder"
	case TierLabel:
		return "label"
	case TierSubmitHeuristic:
		return "submit_heuristic"
	default:
		return "none"
	}
}

var submitWords = map[string]bool{
	"submit":   true,
	"save":     true,
	"continue": true,
	"next":     true,
}

// Resolve picks the element a selector hint refers to. Rules are tried in
// order and the first visible element matching a rule wins:
//
//  1. exact name, then exact id
//  2. placeholder containing the hint
//  3. label text (associated label, aria-label, or the element's own text)
//  4. submit-like buttons, only for clicks or when the hint itself is submit-like
//
// Fill actions only consider elements that accept text.
func Resolve(elements []schemas.ElementInfo, hint string, kind schemas.ActionKind) (schemas.ElementInfo, Tier, bool) {
	h := normalize(hint)
	if h == "" {
		return schemas.ElementInfo{}, TierNone, false
	}

	candidates := make([]schemas.ElementInfo, 0, len(elements))
	for _, el := range elements {
		if !el.Visible {
			continue
		}
		if kind == schemas.ActionFill && !Fillable(el) {
			continue
		}
		candidates = append(candidates, el)
	}

	// 1. Exact name, then id.
	if el, ok := first(candidates, func(el schemas.ElementInfo) bool { return normalize(el.Name) == h }); ok {
		return el, TierName, true
	}
	if el, ok := first(candidates, func(el schemas.ElementInfo) bool { return normalize(el.ID) == h }); ok {
		return el, TierID, true
	}

	// 2. Placeholder substring.
	if el, ok := first(candidates, func(el schemas.ElementInfo) bool {
		p := normalize(el.Placeholder)
		return p != "" && strings.Contains(p, h)
	}); ok {
		return el, TierPlaceholder, true
	}

	// 3. Visible label text. Exact matches beat partial ones.
	if el, ok := first(candidates, func(el schemas.ElementInfo) bool {
		for _, text := range visibleTexts(el) {
			if text == h {
				return true
			}
		}
		return false
	}); ok {
		return el, TierLabel, true
	}
	if el, ok := first(candidates, func(el schemas.ElementInfo) bool {
		for _, text := range visibleTexts(el) {
			if strings.Contains(text, h) {
				return true
			}
		}
		return false
	}); ok {
		return el, TierLabel, true
	}

	// 4. Submit heuristics.
	if kind == schemas.ActionClick || IsSubmitLike(hint) {
		if el, ok := first(candidates, IsSubmitButton); ok {
			return el, TierSubmitHeuristic, true
		}
	}
	return schemas.ElementInfo{}, TierNone, false
}

// IsSubmitLike reports whether a hint names a generic form submission.
func IsSubmitLike(hint string) bool {
	h := normalize(hint)
	if submitWords[h] {
		return true
	}
	for _, w := range strings.Fields(h) {
		if submitWords[w] {
			return true
		}
	}
	return false
}

// IsSubmitButton reports whether an element submits its form or reads like a
// submission control.
func IsSubmitButton(el schemas.ElementInfo) bool {
	if strings.EqualFold(el.Type, "submit") {
		return true
	}
	tag := strings.ToLower(el.Tag)
	if tag != "button" && tag != "input" && tag != "a" && !strings.EqualFold(el.Type, "button") {
		return false
	}
	for _, text := range []string{el.Text, el.Value, el.Label} {
		if submitWords[normalize(text)] {
			return true
		}
	}
	return false
}

// Fillable reports whether text can be typed into the element.
func Fillable(el schemas.ElementInfo) bool {
	switch strings.ToLower(el.Tag) {
	case "textarea", "select":
		return true
	case "input":
		switch strings.ToLower(el.Type) {
		case "submit", "button", "reset", "image", "checkbox", "radio", "file", "hidden":
			return false
		}
		return true
	}
	return false
}

// visibleTexts returns the human-readable names of an element. Own text only
// counts for controls whose text is their name.
func visibleTexts(el schemas.ElementInfo) []string {
	texts := []string{normalize(el.Label)}
	switch strings.ToLower(el.Tag) {
	case "button", "a", "summary", "option":
		texts = append(texts, normalize(el.Text))
	case "input":
		switch strings.ToLower(el.Type) {
		case "submit", "button", "reset":
			texts = append(texts, normalize(el.Value))
		}
	default:
		if strings.EqualFold(el.Type, "button") {
			texts = append(texts, normalize(el.Text))
		}
	}
	out := texts[:0]
	for _, t := range texts {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func first(elements []schemas.ElementInfo, match func(schemas.ElementInfo) bool) (schemas.ElementInfo, bool) {
	for _, el := range elements {
		if match(el) {
			return el, true
		}
	}
	return schemas.ElementInfo{}, false
}

// normalize lower-cases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
