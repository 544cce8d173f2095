// internal/interpreter/fill.go
package interpreter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var (
	// "'V' into 'F'" and "V into the F field".
	intoConnector     = regexp.MustCompile(`(?i)^\s*(?:into|in|inside|on|to)\s+(?:the\s+)?`)
	intoConnectorOnly = regexp.MustCompile(`(?i)^\s*(?:into|in|inside|on|to)\s+(?:the\s+)?$`)
	// "'F' with 'V'" and "'F' field as 'V'".
	withConnectorOnly = regexp.MustCompile(`(?i)^\s*(?:(?:field|input|box)\s+)?(?:with|as|=)\s*$`)
	withTrailing      = regexp.MustCompile(`(?i)^\s*(?:(?:field|input|box)\s+)?(?:with|as)\s+(.+)$`)
	withLeading       = regexp.MustCompile(`(?i)^(.*?)\s*\b(?:with|as)\s*$`)
	unquotedWith      = regexp.MustCompile(`(?i)^(.+?)\s+(?:with|as)\s+(.+)$`)
	unquotedInto      = regexp.MustCompile(`(?i)^(.+?)\s+(?:into|in|inside)\s+(.+)$`)
	containerNoun     = regexp.MustCompile(`(?i)\b(?:form|page|section|modal|dialog|popup)$`)

	leadingArticles = regexp.MustCompile(`(?i)^(?:the|a|an|your|my|their|his|her)\s+`)
	fieldNouns      = regexp.MustCompile(`(?i)\s+(?:field|input|box|textbox|text\s+box|textarea|text\s+area|area)$`)
)

// fill parses the object of a fill verb. With no literal value, the field is
// matched against the page context and a fake value is generated.
func (in *Interpreter) fill(rest string, pageCtx schemas.PageContext) schemas.Action {
	rest = trimPrefixFold(trimPrefixFold(rest, "in "), "out ")
	field, value := splitFill(rest)
	if field == "" {
		return schemas.NewUnrecognized("")
	}
	if value != "" {
		return schemas.NewFill(field, value, false)
	}

	label, fieldType := field, "text"
	if fd, ok := MatchField(field, pageCtx); ok {
		label = strings.TrimSpace(fd.SemanticLabel() + " " + strings.ToLower(fd.Label) + " " + strings.ToLower(field))
		if fd.Type != "" {
			fieldType = fd.Type
		}
	}
	return schemas.NewFill(field, in.fake.Value(label, fieldType), true)
}

// splitFill returns the field hint and the literal value (empty when absent).
func splitFill(rest string) (field, value string) {
	lits := quotedLiterals(rest)

	switch {
	case len(lits) >= 2:
		a, b := lits[0], lits[1]
		between := rest[a.end:b.start]
		switch {
		case intoConnectorOnly.MatchString(between):
			return strings.TrimSpace(b.value), a.value
		case withConnectorOnly.MatchString(between):
			return strings.TrimSpace(a.value), b.value
		case containsWord(between, "into", "in", "inside", "on"):
			return strings.TrimSpace(b.value), a.value
		default:
			return strings.TrimSpace(a.value), b.value
		}

	case len(lits) == 1:
		lit := lits[0]
		before, after := rest[:lit.start], rest[lit.end:]

		// "'V' into the email field"
		if loc := intoConnector.FindStringIndex(after); loc != nil {
			if f := cleanField(after[loc[1]:]); f != "" {
				return f, lit.value
			}
		}
		// "the name field with 'John'"
		if m := withLeading.FindStringSubmatch(before); m != nil && strings.TrimSpace(m[1]) != "" {
			return cleanField(m[1]), lit.value
		}
		// "'name' with John"
		if m := withTrailing.FindStringSubmatch(after); m != nil {
			return strings.TrimSpace(lit.value), trimValue(m[1])
		}
		// "into 'email'" or plain "'email'"
		return strings.TrimSpace(lit.value), ""

	default:
		if m := unquotedWith.FindStringSubmatch(rest); m != nil {
			return cleanField(m[1]), trimValue(m[2])
		}
		if m := unquotedInto.FindStringSubmatch(rest); m != nil {
			// "email in the signup form" names a container, not a value.
			if containerNoun.MatchString(m[2]) {
				return cleanField(m[1]), ""
			}
			return cleanField(m[2]), trimValue(m[1])
		}
		return cleanField(rest), ""
	}
}

// cleanField strips articles and trailing nouns such as "field" from a hint.
func cleanField(s string) string {
	s = strings.TrimSpace(strings.Trim(s, " .,;:"))
	for {
		before := s
		s = leadingArticles.ReplaceAllString(s, "")
		s = fieldNouns.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
		if s == before {
			return s
		}
	}
}

func trimValue(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " .,;"))
}

// MatchField finds the input a hint most plausibly refers to: first an exact
// (punctuation-insensitive) match on name, id, placeholder or label, then a
// substring match in either direction.
func MatchField(hint string, pageCtx schemas.PageContext) (schemas.FieldDescriptor, bool) {
	h := squash(hint)
	if h == "" {
		return schemas.FieldDescriptor{}, false
	}
	fields := pageCtx.Fields()

	for _, f := range fields {
		for _, c := range candidates(f) {
			if c == h {
				return f, true
			}
		}
	}
	for _, f := range fields {
		for _, c := range candidates(f) {
			if len(c) > 1 && (strings.Contains(c, h) || strings.Contains(h, c)) {
				return f, true
			}
		}
	}
	return schemas.FieldDescriptor{}, false
}

func candidates(f schemas.FieldDescriptor) []string {
	out := make([]string, 0, 4)
	for _, s := range []string{f.Name, f.ID, f.Placeholder, f.Label} {
		if c := squash(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// squash lower-cases and drops everything but letters and digits, so
// "First Name", "first_name" and "firstName" compare equal.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsWord(s string, words ...string) bool {
	for _, f := range strings.Fields(strings.ToLower(s)) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
