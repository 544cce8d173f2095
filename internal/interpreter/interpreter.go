// internal/interpreter/interpreter.go
package interpreter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/fakedata"
)

// DefaultWait is used for "wait" steps that name no duration.
const DefaultWait = 5 * time.Second

type verbClass int

const (
	verbNone verbClass = iota
	verbFill
	verbClick
	verbNavigate
	verbWait
	verbAssert
	verbCheck
	verbOpen
)

// verbs maps every accepted imperative and third-person form to its class.
var verbs = map[string]verbClass{
	"fill": verbFill, "fills": verbFill, "enter": verbFill, "enters": verbFill,
	"type": verbFill, "types": verbFill, "input": verbFill, "inputs": verbFill,

	"click": verbClick, "clicks": verbClick, "press": verbClick, "presses": verbClick,
	"tap": verbClick, "taps": verbClick, "submit": verbClick, "submits": verbClick,
	"select": verbClick, "selects": verbClick, "hit": verbClick, "hits": verbClick,

	"navigate": verbNavigate, "navigates": verbNavigate, "go": verbNavigate, "goes": verbNavigate,
	"open": verbOpen, "opens": verbOpen, "visit": verbOpen, "visits": verbOpen,
	"reload": verbNavigate, "reloads": verbNavigate, "refresh": verbNavigate, "refreshes": verbNavigate,

	"wait": verbWait, "waits": verbWait, "pause": verbWait, "pauses": verbWait,

	"assert": verbAssert, "asserts": verbAssert, "verify": verbAssert, "verifies": verbAssert,
	"check": verbCheck, "checks": verbCheck, "uncheck": verbClick, "unchecks": verbClick,
	"tick": verbClick, "ticks": verbClick, "untick": verbClick, "unticks": verbClick,
	"expect": verbAssert, "expects": verbAssert,
	"ensure": verbAssert, "ensures": verbAssert, "confirm": verbAssert, "confirms": verbAssert,
	"should": verbAssert, "see": verbAssert, "sees": verbAssert,
}

var (
	numberingPrefix  = regexp.MustCompile(`(?i)^\s*(?:step\s*\d+\s*[:.)\-]?|\d+\s*[.):\-]|[-*•])\s*`)
	connectivePrefix = regexp.MustCompile(`(?i)^(?:(?:then|and|next|finally|now)[,\s]+|first,\s*)`)
	subjectPrefix    = regexp.MustCompile(`(?i)^(?:the\s+)?(?:user|users|customer|visitor|tester|i|we|they)\s+`)
	durationPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ms|millis|milliseconds?|s|secs?|seconds?|m|mins?|minutes?)\b`)
)

// Interpreter turns natural-language scenario steps into typed actions. It
// is stateless apart from its configuration and safe for concurrent use.
type Interpreter struct {
	fake        fakedata.Generator
	defaultWait time.Duration
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithGenerator sets the fake-value generator used for fields without a literal.
func WithGenerator(g fakedata.Generator) Option {
	return func(in *Interpreter) { in.fake = g }
}

// WithDefaultWait sets the timeout for "wait" steps without a duration.
func WithDefaultWait(d time.Duration) Option {
	return func(in *Interpreter) {
		if d > 0 {
			in.defaultWait = d
		}
	}
}

// New creates an Interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{defaultWait: DefaultWait}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

var defaultInterpreter = New()

// Interpret maps a step using the default configuration.
func Interpret(step string, pageCtx schemas.PageContext) schemas.Action {
	return defaultInterpreter.Interpret(step, pageCtx)
}

// Interpret maps one step to an action. It never fails: text it cannot map
// becomes an Unrecognized action carrying the raw step.
func (in *Interpreter) Interpret(step string, pageCtx schemas.PageContext) schemas.Action {
	text := normalize(step)
	if text == "" {
		return schemas.NewUnrecognized(step)
	}

	verb, rest := splitVerb(text)
	class := verbs[verb]

	// Steps like "Welcome message should be displayed" lead with the subject.
	if class == verbNone && containsAssertionPhrase(text) {
		class, rest = verbAssert, text
	}

	// "check" and "open" each have a page-level reading and an element-level one.
	switch class {
	case verbCheck:
		class = verbClick
		if isCheckAssertion(rest) {
			class = verbAssert
		}
	case verbOpen:
		class = verbClick
		if opensPage(rest) {
			class = verbNavigate
		}
	}

	var action schemas.Action
	switch class {
	case verbFill:
		action = in.fill(rest, pageCtx)
	case verbClick:
		action = click(verb, rest)
	case verbNavigate:
		action = schemas.NewNavigate()
	case verbWait:
		action = schemas.NewWaitForLoad(in.waitMillis(rest))
	case verbAssert:
		action = assertion(verb, rest)
	default:
		action = schemas.NewUnrecognized(step)
	}

	if action.Kind == schemas.ActionUnrecognized {
		action.Raw = step
	}
	return action
}

// normalize folds quote styles and strips numbering, connectives, a leading
// subject and trailing punctuation.
func normalize(step string) string {
	s := strings.NewReplacer(
		"‘", "'", "’", "'", "`", "'",
		"“", "\"", "”", "\"",
	).Replace(step)
	s = strings.TrimSpace(s)
	s = numberingPrefix.ReplaceAllString(s, "")

	for {
		before := s
		s = connectivePrefix.ReplaceAllString(s, "")
		s = subjectPrefix.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(s, " .;!"))
}

func splitVerb(text string) (string, string) {
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return strings.ToLower(text), ""
	}
	verb := strings.ToLower(text[:idx])
	rest := strings.TrimSpace(text[idx:])
	if verb == "go" || verb == "goes" {
		rest = trimPrefixFold(rest, "to ")
	}
	return verb, rest
}

func containsAssertionPhrase(text string) bool {
	l := " " + strings.ToLower(text) + " "
	for _, phrase := range []string{" should ", " is displayed ", " is visible ", " appears ", " is shown "} {
		if strings.Contains(l, phrase) {
			return true
		}
	}
	return false
}

func (in *Interpreter) waitMillis(rest string) int {
	m := durationPattern.FindStringSubmatch(rest)
	if m == nil {
		return int(in.defaultWait / time.Millisecond)
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return int(in.defaultWait / time.Millisecond)
	}
	unit := strings.ToLower(m[2])

	var d time.Duration
	switch {
	case strings.HasPrefix(unit, "ms"), strings.HasPrefix(unit, "milli"):
		d = time.Duration(amount * float64(time.Millisecond))
	case strings.HasPrefix(unit, "m"):
		d = time.Duration(amount * float64(time.Minute))
	default:
		d = time.Duration(amount * float64(time.Second))
	}
	if d <= 0 {
		return int(in.defaultWait / time.Millisecond)
	}
	return int(d / time.Millisecond)
}

func trimPrefixFold(s, prefix string) string {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return s
}
