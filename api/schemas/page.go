// api/schemas/page.go
package schemas

import "strings"

// -- Page Context Schemas --

// PageContext is a read-only snapshot of a loaded page. It is produced once per
// page load and handed to the scenario oracle and the step interpreter.
type PageContext struct {
	Title          string           `json:"title"`
	URL            string           `json:"url"`
	HasLoginForm   bool             `json:"hasLoginForm"`
	HasContactForm bool             `json:"hasContactForm"`
	HasSearchForm  bool             `json:"hasSearchForm"`
	Forms          []FormDescriptor `json:"forms"`
	NavLinks       []LinkDescriptor `json:"navLinks"`
}

// HasForms reports whether the snapshot contains at least one form.
func (p *PageContext) HasForms() bool {
	return p != nil && len(p.Forms) > 0
}

// Fields returns every field of every form, in document order.
func (p *PageContext) Fields() []FieldDescriptor {
	if p == nil {
		return nil
	}
	var fields []FieldDescriptor
	for _, f := range p.Forms {
		fields = append(fields, f.Inputs...)
	}
	return fields
}

// FormDescriptor describes a single <form> element.
type FormDescriptor struct {
	ID        string            `json:"id"`
	ClassName string            `json:"className"`
	Action    string            `json:"action,omitempty"`
	Method    string            `json:"method,omitempty"`
	Inputs    []FieldDescriptor `json:"inputs"`
}

// FieldDescriptor describes a form control (input, textarea, select, button).
type FieldDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	ID          string `json:"id,omitempty"`
	Label       string `json:"label,omitempty"`
}

// SemanticLabel is the lower-cased concatenation of name and placeholder. It is
// the key used by the fake value generator.
func (f FieldDescriptor) SemanticLabel() string {
	return strings.ToLower(strings.TrimSpace(f.Name + " " + f.Placeholder))
}

// LinkDescriptor describes a navigation link.
type LinkDescriptor struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// ElementInfo is a flattened view of one visible, interactive element on the
// live page. Selector resolution works on slices of these so it can be tested
// without a browser.
type ElementInfo struct {
	// Selector is a CSS path that uniquely addresses the element.
	Selector    string `json:"selector"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	// Label is the text of an associated <label>, or the aria-label.
	Label   string `json:"label"`
	Text    string `json:"text"`
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
}
