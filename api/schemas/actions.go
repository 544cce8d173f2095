// api/schemas/actions.go
package schemas

import (
	"errors"
	"fmt"
)

// -- Action Schemas --

// ActionKind tags the active variant of an Action.
type ActionKind string

const (
	ActionFill         ActionKind = "fill"
	ActionClick        ActionKind = "click"
	ActionNavigate     ActionKind = "navigate"
	ActionWaitForLoad  ActionKind = "wait_for_load"
	ActionAssert       ActionKind = "assert"
	ActionUnrecognized ActionKind = "unrecognized"
)

// ConditionKind enumerates the checks an Assert action can perform.
type ConditionKind string

const (
	ConditionTextPresent   ConditionKind = "text_present"
	ConditionTextAbsent    ConditionKind = "text_absent"
	ConditionURLContains   ConditionKind = "url_contains"
	ConditionTitleContains ConditionKind = "title_contains"
)

// Condition is the payload of an Assert action.
type Condition struct {
	Kind  ConditionKind `json:"kind"`
	Value string        `json:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %q", c.Kind, c.Value)
}

// Action is a typed, executable instruction derived from one natural-language
// step. Exactly one variant (selected by Kind) is active per value; the fields
// that do not belong to that variant are left zero. Use the New* constructors.
type Action struct {
	Kind ActionKind `json:"kind"`
	// SelectorHint is the human-readable target name (Fill, Click).
	SelectorHint string `json:"selector_hint,omitempty"`
	// Value is the literal to type (Fill).
	Value string `json:"value,omitempty"`
	// Generated is set when Value was synthesized by the fake value generator.
	Generated bool `json:"generated,omitempty"`
	// TimeoutMs bounds the wait (WaitForLoad).
	TimeoutMs int `json:"timeout_ms,omitempty"`
	// Condition is the check to perform (Assert).
	Condition *Condition `json:"condition,omitempty"`
	// Raw is the unparsed step text (Unrecognized).
	Raw string `json:"raw,omitempty"`
}

// NewFill builds a Fill action.
func NewFill(selectorHint, value string, generated bool) Action {
	return Action{Kind: ActionFill, SelectorHint: selectorHint, Value: value, Generated: generated}
}

// NewClick builds a Click action.
func NewClick(selectorHint string) Action {
	return Action{Kind: ActionClick, SelectorHint: selectorHint}
}

// NewNavigate builds a Navigate action. It always targets the run's original URL.
func NewNavigate() Action {
	return Action{Kind: ActionNavigate}
}

// NewWaitForLoad builds a WaitForLoad action.
func NewWaitForLoad(timeoutMs int) Action {
	return Action{Kind: ActionWaitForLoad, TimeoutMs: timeoutMs}
}

// NewAssert builds an Assert action.
func NewAssert(kind ConditionKind, value string) Action {
	return Action{Kind: ActionAssert, Condition: &Condition{Kind: kind, Value: value}}
}

// NewUnrecognized builds an Unrecognized action carrying the raw step.
func NewUnrecognized(raw string) Action {
	return Action{Kind: ActionUnrecognized, Raw: raw}
}

var errForeignField = errors.New("field set that does not belong to the action kind")

// Validate checks that exactly the fields of the active variant are populated.
func (a Action) Validate() error {
	hasHint := a.SelectorHint != ""
	hasValue := a.Value != "" || a.Generated
	hasTimeout := a.TimeoutMs != 0
	hasCond := a.Condition != nil
	hasRaw := a.Raw != ""

	switch a.Kind {
	case ActionFill:
		if !hasHint {
			return fmt.Errorf("fill action requires a selector hint")
		}
		if hasTimeout || hasCond || hasRaw {
			return fmt.Errorf("fill action: %w", errForeignField)
		}
	case ActionClick:
		if !hasHint {
			return fmt.Errorf("click action requires a selector hint")
		}
		if hasValue || hasTimeout || hasCond || hasRaw {
			return fmt.Errorf("click action: %w", errForeignField)
		}
	case ActionNavigate:
		if hasHint || hasValue || hasTimeout || hasCond || hasRaw {
			return fmt.Errorf("navigate action: %w", errForeignField)
		}
	case ActionWaitForLoad:
		if a.TimeoutMs <= 0 {
			return fmt.Errorf("wait_for_load action requires a positive timeout")
		}
		if hasHint || hasValue || hasCond || hasRaw {
			return fmt.Errorf("wait_for_load action: %w", errForeignField)
		}
	case ActionAssert:
		if !hasCond || a.Condition.Value == "" {
			return fmt.Errorf("assert action requires a non-empty condition")
		}
		if hasHint || hasValue || hasTimeout || hasRaw {
			return fmt.Errorf("assert action: %w", errForeignField)
		}
	case ActionUnrecognized:
		if hasHint || hasValue || hasTimeout || hasCond {
			return fmt.Errorf("unrecognized action: %w", errForeignField)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// String renders a short, log-friendly description.
func (a Action) String() string {
	switch a.Kind {
	case ActionFill:
		return fmt.Sprintf("fill %q with %q", a.SelectorHint, a.Value)
	case ActionClick:
		return fmt.Sprintf("click %q", a.SelectorHint)
	case ActionNavigate:
		return "navigate"
	case ActionWaitForLoad:
		return fmt.Sprintf("wait_for_load %dms", a.TimeoutMs)
	case ActionAssert:
		if a.Condition != nil {
			return "assert " + a.Condition.String()
		}
		return "assert"
	default:
		return fmt.Sprintf("unrecognized %q", a.Raw)
	}
}
