package classify

import "strings"

type tokenKind int

const (
	tokenFunction tokenKind = iota
	tokenUnit
	tokenAbsoluteLength
	tokenKeyword
)

type valueToken struct {
	kind                  tokenKind
	text                  string
	insideOpaqueColorFunc bool
}

// scanValueTokens walks a declaration's raw value and extracts the
// function calls, unit-suffixed numbers, and bare keywords it
// contains. It tracks enclosing function names so a unit's nearest
// enclosing function is known (needed to suppress percentages that
// are color channels, not size percentages).
func scanValueTokens(raw string) []valueToken {
	var out []valueToken
	var stack []string
	var inQuote byte
	n := len(raw)

	for i := 0; i < n; {
		c := raw[i]

		switch {
		case inQuote != 0:
			if c == '\\' && i+1 < n {
				i += 2
				continue
			}
			if c == inQuote {
				inQuote = 0
			}
			i++

		case c == '"' || c == '\'':
			inQuote = c
			i++

		case c == '(':
			i++

		case c == ')':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			i++

		case isNumberStart(raw, i):
			// Checked before isIdentStart: a leading '-' is ambiguous
			// between a negative number ("-20px") and a hyphenated
			// identifier ("-moz-initial"); isNumberStart resolves it by
			// looking at the next byte.
			j := i
			for j < n && (raw[j] == '.' || raw[j] == '-' || raw[j] == '+' || isDigit(raw[j])) {
				j++
			}
			k := j
			for k < n && isIdentChar(raw[k]) {
				k++
			}
			if k < n && raw[k] == '%' {
				k++
			}
			text := raw[i:k]
			insideOpaque := len(stack) > 0 && isOpaqueColorFunction(stack[len(stack)-1])
			switch {
			case strings.HasSuffix(strings.ToLower(text), "px"):
				out = append(out, valueToken{kind: tokenAbsoluteLength, text: text})
			default:
				if _, ok := unitDependencyKind(text); ok {
					out = append(out, valueToken{kind: tokenUnit, text: text, insideOpaqueColorFunc: insideOpaque})
				}
			}
			i = k

		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentChar(raw[j]) {
				j++
			}
			word := raw[i:j]
			if j < n && raw[j] == '(' {
				out = append(out, valueToken{kind: tokenFunction, text: word})
				stack = append(stack, strings.ToLower(word))
				i = j + 1
				continue
			}
			out = append(out, valueToken{kind: tokenKeyword, text: word})
			i = j

		default:
			i++
		}
	}
	return out
}

func isIdentStart(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberStart(s string, i int) bool {
	c := s[i]
	if isDigit(c) || c == '.' {
		return true
	}
	if (c == '-' || c == '+') && i+1 < len(s) {
		n := s[i+1]
		return isDigit(n) || n == '.'
	}
	return false
}
