// internal/interpreter/interpreter_test.go
package interpreter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/fakedata"
)

func signupContext() schemas.PageContext {
	return schemas.PageContext{
		Title: "Sign up",
		URL:   "https://example.test/signup",
		Forms: []schemas.FormDescriptor{{
			ID: "signup",
			Inputs: []schemas.FieldDescriptor{
				{Name: "user_email", Type: "email", Placeholder: "Your email"},
				{Name: "pwd", Type: "password", Label: "Password"},
				{Name: "years", Type: "number", Placeholder: "Age"},
				{Name: "first_name", Type: "text"},
				{Name: "q", Type: "search", Placeholder: "Search"},
			},
		}},
	}
}

func newTestInterpreter() *Interpreter {
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return New(WithGenerator(fakedata.Generator{Now: clock}), WithDefaultWait(3*time.Second))
}

func TestInterpret_Table(t *testing.T) {
	in := newTestInterpreter()
	pageCtx := signupContext()

	tests := []struct {
		name string
		step string
		want schemas.Action
	}{
		{"fill value into field", "Fill 'test@example.com' into 'email'", schemas.NewFill("email", "test@example.com", false)},
		{"fill field with value", `Fill "username" with "alice"`, schemas.NewFill("username", "alice", false)},
		{"fill the field with value", "Fill the 'first name' field with 'Ada'", schemas.NewFill("first name", "Ada", false)},
		{"curly quotes", "Type ‘Ada’ into ‘first name’", schemas.NewFill("first name", "Ada", false)},
		{"unquoted field with quoted value", "Enter the name field with 'Ada'", schemas.NewFill("name", "Ada", false)},
		{"quoted value into prose field", "Enter 'Ada' into the first name field", schemas.NewFill("first name", "Ada", false)},
		{"unquoted with", "Fill city with Springfield", schemas.NewFill("city", "Springfield", false)},
		{"third person fill", "The user types 'hello' into 'Search'", schemas.NewFill("Search", "hello", false)},
		{"numbered step", "1. Fill 'a@b.co' into 'email'", schemas.NewFill("email", "a@b.co", false)},
		{"step prefix", "Step 2: Click 'Sign up'", schemas.NewClick("Sign up")},

		{"click quoted", "Click the 'Sign In' button", schemas.NewClick("Sign In")},
		{"click unquoted strips nouns", "Click on the Login button", schemas.NewClick("Login")},
		{"third person click", "User clicks Submit", schemas.NewClick("Submit")},
		{"submit the form", "Submit the form", schemas.NewClick("Submit")},
		{"press key", "Press Enter", schemas.NewClick("Enter")},
		{"tap link", "Tap the Pricing link", schemas.NewClick("Pricing")},

		{"navigate", "Navigate to the page", schemas.NewNavigate()},
		{"go to", "Go to the homepage", schemas.NewNavigate()},
		{"reload", "Reload the page", schemas.NewNavigate()},
		{"open the homepage", "Open the homepage", schemas.NewNavigate()},
		{"visit a url", "Visit https://acme.test/login", schemas.NewNavigate()},
		{"open an element is a click", "Open the navigation menu", schemas.NewClick("navigation menu")},
		{"visit a link is a click", "Visit the Pricing link", schemas.NewClick("Pricing")},

		{"check a checkbox", "Check the 'Remember me' checkbox", schemas.NewClick("Remember me")},
		{"check unquoted checkbox", "Check the Terms checkbox", schemas.NewClick("Terms")},
		{"check without assertion phrasing", "Check 'Subscribe'", schemas.NewClick("Subscribe")},
		{"uncheck", "Uncheck 'Remember me'", schemas.NewClick("Remember me")},
		{"check that asserts", "Check that 'Welcome' is displayed", schemas.NewAssert(schemas.ConditionTextPresent, "Welcome")},
		{"check the url", "Check the URL contains '/dashboard'", schemas.NewAssert(schemas.ConditionURLContains, "/dashboard")},

		{"wait seconds", "Wait 3 seconds", schemas.NewWaitForLoad(3000)},
		{"wait ms", "Wait for 500ms", schemas.NewWaitForLoad(500)},
		{"wait short seconds", "wait 2s for the results", schemas.NewWaitForLoad(2000)},
		{"wait default", "Wait for the page to load", schemas.NewWaitForLoad(3000)},

		{"assert present", "Verify that 'Welcome' is displayed", schemas.NewAssert(schemas.ConditionTextPresent, "Welcome")},
		{"assert absent", "Verify 'Error' is not displayed", schemas.NewAssert(schemas.ConditionTextAbsent, "Error")},
		{"assert no longer", "Ensure 'Loading' no longer appears", schemas.NewAssert(schemas.ConditionTextAbsent, "Loading")},
		{"negation inside literal is ignored", "Check that 'Page not found' is shown", schemas.NewAssert(schemas.ConditionTextPresent, "Page not found")},
		{"url contains", "Verify the URL contains '/dashboard'", schemas.NewAssert(schemas.ConditionURLContains, "/dashboard")},
		{"redirected", "User should be redirected to '/welcome'", schemas.NewAssert(schemas.ConditionURLContains, "/welcome")},
		{"title contains", "Expect the page title contains 'Home'", schemas.NewAssert(schemas.ConditionTitleContains, "Home")},
		{"should see", "The user should see 'Thank you'", schemas.NewAssert(schemas.ConditionTextPresent, "Thank you")},
		{"unquoted subject", "Verify success message appears", schemas.NewAssert(schemas.ConditionTextPresent, "success message")},
		{"subject first", "Welcome banner should be displayed", schemas.NewAssert(schemas.ConditionTextPresent, "Welcome banner")},
		{"unquoted negative", "Verify error message does not appear", schemas.NewAssert(schemas.ConditionTextAbsent, "error message")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := in.Interpret(tt.step, pageCtx)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Interpret(%q) mismatch (-want +got):\n%s", tt.step, diff)
			}
			assert.NoError(t, got.Validate())
		})
	}
}

func TestInterpret_LiteralValueSkipsGenerator(t *testing.T) {
	// A generator whose clock panics proves the fake path is never taken.
	in := New(WithGenerator(fakedata.Generator{Now: func() time.Time { panic("generator called") }}))

	got := in.Interpret("Fill 'V' into 'F'", schemas.PageContext{})
	assert.Equal(t, schemas.NewFill("F", "V", false), got)
}

func TestInterpret_GeneratedValues(t *testing.T) {
	in := newTestInterpreter()
	pageCtx := signupContext()

	tests := []struct {
		step      string
		wantField string
		wantValue string
	}{
		{"Fill '' into 'email'", "email", fakedata.Email},
		{"Enter email", "email", fakedata.Email},
		{"Fill 'Password'", "Password", fakedata.Password},
		{"Fill in the age field", "age", fakedata.Number},
		{"Enter your first name", "first name", fakedata.FirstName},
		{"Enter a comment", "comment", fakedata.Fallback},
		{"Type the search box", "search", fakedata.Fallback},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			got := in.Interpret(tt.step, pageCtx)
			require.Equal(t, schemas.ActionFill, got.Kind)
			assert.Equal(t, tt.wantField, got.SelectorHint)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.True(t, got.Generated)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestInterpret_Unrecognized(t *testing.T) {
	in := newTestInterpreter()
	for _, step := range []string{
		"",
		"   ",
		"Admire the colour scheme",
		"Click",
		"Fill",
		"Verify",
	} {
		got := in.Interpret(step, schemas.PageContext{})
		assert.Equal(t, schemas.ActionUnrecognized, got.Kind, "step %q", step)
		assert.Equal(t, step, got.Raw)
		assert.NoError(t, got.Validate())
	}
}

func TestPackageInterpretUsesDefaults(t *testing.T) {
	got := Interpret("Wait", schemas.PageContext{})
	assert.Equal(t, schemas.NewWaitForLoad(int(DefaultWait/time.Millisecond)), got)
}

func TestMatchField(t *testing.T) {
	pageCtx := signupContext()

	fd, ok := MatchField("first name", pageCtx)
	require.True(t, ok)
	assert.Equal(t, "first_name", fd.Name)

	fd, ok = MatchField("Password", pageCtx)
	require.True(t, ok, "label text matches")
	assert.Equal(t, "pwd", fd.Name)

	fd, ok = MatchField("email", pageCtx)
	require.True(t, ok, "substring of the name matches")
	assert.Equal(t, "user_email", fd.Name)

	_, ok = MatchField("zipcode", pageCtx)
	assert.False(t, ok)

	_, ok = MatchField("", pageCtx)
	assert.False(t, ok)
}

func TestQuotedLiterals(t *testing.T) {
	lits := quotedLiterals(`Fill 'it's fine' into "the user's field"`)
	require.Len(t, lits, 2)
	assert.Equal(t, "it's fine", lits[0].value)
	assert.Equal(t, "the user's field", lits[1].value)

	assert.Empty(t, quotedLiterals("the user's profile"))
	require.Len(t, quotedLiterals("Fill '' into 'x'"), 2)
}
