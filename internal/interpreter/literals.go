// internal/interpreter/literals.go
package interpreter

import (
	"unicode"
	"unicode/utf8"
)

// literal is a quoted span inside a step. start and end are byte offsets of
// the surrounding quotes (end is one past the closing quote).
type literal struct {
	value      string
	start, end int
}

// quotedLiterals finds '...' and "..." spans. A quote only opens or closes
// at a word boundary, so apostrophes in "user's" are left alone.
func quotedLiterals(s string) []literal {
	var out []literal
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r != '\'' && r != '"') || !boundaryBefore(s, i) {
			i += size
			continue
		}
		closeAt := -1
		for j := i + size; j < len(s); {
			c, csize := utf8.DecodeRuneInString(s[j:])
			if c == r && boundaryAfter(s, j+csize) {
				closeAt = j
				break
			}
			j += csize
		}
		if closeAt < 0 {
			i += size
			continue
		}
		out = append(out, literal{value: s[i+size : closeAt], start: i, end: closeAt + 1})
		i = closeAt + 1
	}
	return out
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// withoutLiterals blanks out quoted spans so keyword checks only see the
// surrounding prose.
func withoutLiterals(s string, lits []literal) string {
	if len(lits) == 0 {
		return s
	}
	b := []byte(s)
	for _, l := range lits {
		for k := l.start; k < l.end; k++ {
			b[k] = ' '
		}
	}
	return string(b)
}
