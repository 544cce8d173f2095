// internal/interpreter/steps.go
package interpreter

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

var (
	clickLead  = regexp.MustCompile(`(?i)^(?:on|onto|the|a|an)\s+`)
	clickNouns = regexp.MustCompile(`(?i)\s+(?:button|btn|link|tab|icon|checkbox|radio|option|menu\s+item)$`)

	negation   = regexp.MustCompile(`(?i)\b(?:not|no\s+longer|absent|disappears?|disappeared|isn't|doesn't|don't|never|gone)\b`)
	urlSubject = regexp.MustCompile(`(?i)\b(?:url|address\s+bar|redirected|location)\b`)
	titleWord  = regexp.MustCompile(`(?i)\b(?:page\s+)?title\b`)
	afterVerb  = regexp.MustCompile(`(?i)^.*\b(?:contains|includes|include|contain|has|is|equals|to|shows)\s+(?:the\s+)?(.+)$`)

	assertLead = regexp.MustCompile(`(?i)^(?:that|to\s+see|see|be\s+able\s+to\s+see|the\s+text|text|the\s+message|message|the|a|an)\s+`)
	assertTail = regexp.MustCompile(`(?i)\s+(?:(?:is|are|should\s+be|gets?)\s+(?:displayed|visible|shown|present|rendered)|appears?|is\s+on\s+(?:the\s+)?(?:page|screen)|(?:on|in)\s+(?:the\s+)?(?:page|screen))$`)
	negTail    = regexp.MustCompile(`(?i)\s+(?:does\s+not|doesn't|do\s+not|don't|is\s+not|isn't|is\s+no\s+longer|no\s+longer|should\s+not|should\s+no\s+longer)\b.*$`)
	shouldTail = regexp.MustCompile(`(?i)\s+should\b.*$`)

	toggleObject = regexp.MustCompile(`(?i)\b(?:checkbox|check\s+box|box|option|radio|toggle|switch)\b`)
	checkPhrase  = regexp.MustCompile(`(?i)^(?:that|whether|if)\b|\b(?:contains?|includes?|shows?|displays?|displayed|is|are|appears?|equals?|exists?|present|visible|shown|url|title)\b`)
	pageObject   = regexp.MustCompile(`(?i)^(?:https?://\S+|www\.\S+|/\S*|(?:the\s+)?(?:home\s*page|(?:[\w-]+\s+)?page|site|website|url|target\s+url))$`)
)

// isCheckAssertion reports whether a "check" step verifies something rather
// than ticking a control. Only the prose outside quotes is considered.
func isCheckAssertion(rest string) bool {
	prose := withoutLiterals(rest, quotedLiterals(rest))
	if toggleObject.MatchString(prose) {
		return false
	}
	return checkPhrase.MatchString(strings.TrimSpace(prose))
}

// opensPage reports whether the object of "open" or "visit" is the page
// itself or a URL, as opposed to an element such as a menu.
func opensPage(rest string) bool {
	object := strings.TrimSpace(strings.Trim(rest, " '\".,;:"))
	return object != "" && pageObject.MatchString(object)
}

// click parses the object of a click verb into a selector hint.
func click(verb, rest string) schemas.Action {
	if lits := quotedLiterals(rest); len(lits) > 0 && strings.TrimSpace(lits[0].value) != "" {
		return schemas.NewClick(strings.TrimSpace(lits[0].value))
	}

	hint := strings.TrimSpace(strings.Trim(rest, " .,;:"))
	for {
		before := hint
		hint = strings.TrimSpace(clickNouns.ReplaceAllString(clickLead.ReplaceAllString(hint, ""), ""))
		if hint == before {
			break
		}
	}

	isSubmit := verb == "submit" || verb == "submits"
	if isSubmit && (hint == "" || strings.EqualFold(hint, "form")) {
		return schemas.NewClick("Submit")
	}
	if hint == "" {
		return schemas.NewUnrecognized("")
	}
	return schemas.NewClick(hint)
}

// assertion classifies a verification step. Negation is only detected in the
// prose around quoted text, so "'Page not found' is shown" stays positive.
func assertion(verb, rest string) schemas.Action {
	lits := quotedLiterals(rest)
	prose := withoutLiterals(rest, lits)

	var literal string
	if len(lits) > 0 {
		literal = lits[0].value
	}

	switch {
	case urlSubject.MatchString(prose):
		if v := pick(literal, prose); v != "" {
			return schemas.NewAssert(schemas.ConditionURLContains, v)
		}
	case titleWord.MatchString(prose) && !negation.MatchString(prose):
		if v := pick(literal, prose); v != "" {
			return schemas.NewAssert(schemas.ConditionTitleContains, v)
		}
	}

	kind := schemas.ConditionTextPresent
	if negation.MatchString(prose) {
		kind = schemas.ConditionTextAbsent
	}

	value := literal
	if strings.TrimSpace(value) == "" {
		value = unquotedSubject(rest)
	}
	if strings.TrimSpace(value) == "" {
		return schemas.NewUnrecognized("")
	}
	return schemas.NewAssert(kind, value)
}

// pick prefers the quoted literal and otherwise takes the words after
// "contains", "is" and similar.
func pick(literal, prose string) string {
	if strings.TrimSpace(literal) != "" {
		return literal
	}
	if m := afterVerb.FindStringSubmatch(strings.TrimSpace(prose)); m != nil {
		return strings.TrimSpace(strings.Trim(m[1], " .,;:"))
	}
	return ""
}

// unquotedSubject strips filler so "that the welcome message is displayed"
// yields "welcome message".
func unquotedSubject(rest string) string {
	s := strings.TrimSpace(strings.Trim(rest, " .,;:"))
	s = negTail.ReplaceAllString(s, "")
	s = shouldTail.ReplaceAllString(s, "")
	for {
		before := s
		s = strings.TrimSpace(assertTail.ReplaceAllString(assertLead.ReplaceAllString(s, ""), ""))
		if s == before {
			break
		}
	}
	if negation.MatchString(s) && len(strings.Fields(s)) == 1 {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(s, "not "), "no ")
}
