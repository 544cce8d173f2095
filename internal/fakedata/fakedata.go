// internal/fakedata/fakedata.go
package fakedata

import (
	"strings"
	"time"
	"unicode"
)

// Canned values. They are stable so scenario replays produce identical input.
const (
	Email     = "test@example.com"
	Password  = "Test@1234"
	Username  = "testuser"
	FirstName = "John"
	LastName  = "Doe"
	FullName  = "John Doe"
	Phone     = "5551234567"
	Street    = "123 Main St"
	City      = "Springfield"
	Zip       = "12345"
	Quantity  = "1"
	Amount    = "100"
	Number    = "42"
	URL       = "https://example.com"
	Fallback  = "Test input"
)

const dateLayout = "2006-01-02"

// Generator derives plausible input values from a field's semantic label and
// declared input type. The zero value uses the wall clock.
type Generator struct {
	// Now supplies the current time for date fields.
	Now func() time.Time
}

// Value returns a value using the wall clock. See Generator.Value.
func Value(label, fieldType string) string {
	return Generator{}.Value(label, fieldType)
}

// Value never returns an empty string. Keywords in the label take precedence
// over the field type: a "number" input labelled "age" still yields "42", but a
// "text" input labelled "User Email" yields an email address.
func (g Generator) Value(label, fieldType string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	words := tokenize(l)

	// 1. Label keywords, most specific first.
	switch {
	case strings.Contains(l, "email") || strings.Contains(l, "e-mail"):
		return Email
	case strings.Contains(l, "password") || strings.Contains(l, "passwd") || hasWord(words, "pass", "pwd"):
		return Password
	case strings.Contains(l, "username") || strings.Contains(l, "user name") || strings.Contains(l, "login"):
		return Username
	case strings.Contains(l, "name"):
		return g.name(l)
	case strings.Contains(l, "phone") || strings.Contains(l, "mobile") || hasWord(words, "tel", "telephone", "cell"):
		return Phone
	case strings.Contains(l, "address") || strings.Contains(l, "street"):
		return Street
	case strings.Contains(l, "city") || hasWord(words, "town"):
		return City
	case strings.Contains(l, "postal") || hasWord(words, "zip", "zipcode", "postcode"):
		return Zip
	case strings.Contains(l, "birthday") || strings.Contains(l, "date") || hasWord(words, "dob"):
		return g.today()
	case strings.Contains(l, "quantity") || hasWord(words, "qty"):
		return Quantity
	case strings.Contains(l, "amount") || strings.Contains(l, "price") || hasWord(words, "cost", "total"):
		return Amount
	case hasWord(words, "age"):
		return Number
	}

	// 2. Declared input type.
	switch strings.ToLower(strings.TrimSpace(fieldType)) {
	case "email":
		return Email
	case "password":
		return Password
	case "tel":
		return Phone
	case "number", "range":
		return Number
	case "url":
		return URL
	case "date":
		return g.today()
	}
	return Fallback
}

func (g Generator) name(l string) string {
	switch {
	case strings.Contains(l, "first") || strings.Contains(l, "given") || strings.Contains(l, "fname"):
		return FirstName
	case strings.Contains(l, "last") || strings.Contains(l, "surname") || strings.Contains(l, "family") || strings.Contains(l, "lname"):
		return LastName
	}
	return FullName
}

func (g Generator) today() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return now().Format(dateLayout)
}

// tokenize splits on anything that is not a letter or digit, so "user_age",
// "user-age" and "user age" all contain the word "age" while "page" does not.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasWord(words []string, candidates ...string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}
