package css

import (
	"strings"

	"som/selectors"
)

// stripComments removes every /* ... */ block comment, leaving string
// literals untouched (a comment marker inside a quoted string is not a
// comment).
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte // 0 outside a string, else the open quote
	escape := false
	inComment := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inComment {
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				inComment = false
				i++
			}
			continue
		}
		switch {
		case quote != 0:
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == quote:
				quote = 0
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			inComment = true
			i++
			continue
		case c == '"' || c == '\'':
			quote = c
		}
		b.WriteByte(c)
	}
	return b.String()
}

// statement is one top-level `;`-terminated declaration/at-statement,
// or one `{ ... }`-delimited block with its prelude and unparsed body.
type statement struct {
	prelude string
	body    string
	hasBody bool
}

// splitTopLevelStatements repeatedly scans for the next top-level `;`
// or `{`, exactly as the tokenizer's top-level splitter requires:
// terminators are only recognized at zero paren/bracket/string depth.
// Unterminated blocks and stray braces are tolerated by falling through
// to end-of-input rather than raising.
func splitTopLevelStatements(s string) []statement {
	var out []statement
	sc := selectors.NewScanner()
	start := 0
	i := 0
	for i < len(s) {
		c := s[i]
		if sc.AtTop() {
			switch c {
			case ';':
				out = append(out, statement{prelude: s[start:i]})
				i++
				start = i
				continue
			case '{':
				bodyStart := i + 1
				end, ok := findMatchingBrace(s, bodyStart)
				if !ok {
					end = len(s)
				}
				out = append(out, statement{prelude: s[start:i], body: s[bodyStart:end], hasBody: true})
				i = end
				if ok {
					i++ // past the closing '}'
				}
				start = i
				continue
			case '}':
				// A stray close brace with no matching open one: discard
				// whatever text preceded it rather than letting it leak
				// into the next statement's prelude.
				i++
				start = i
				continue
			}
		}
		sc.Step(c)
		i++
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, statement{prelude: s[start:]})
	}
	return out
}

// findMatchingBrace returns the index of the `}` that closes the brace
// opened just before from, tracking nested braces and string literals
// (a brace inside a string or inside deeper nesting doesn't count).
func findMatchingBrace(s string, from int) (int, bool) {
	depth := 1
	sc := selectors.NewScanner()
	for i := from; i < len(s); i++ {
		c := s[i]
		if sc.AtTop() {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
		sc.Step(c)
	}
	return 0, false
}

// splitDeclaration splits a `property: value` statement prelude on its
// first top-level colon.
func splitDeclaration(s string) (property, value string, ok bool) {
	parts := selectors.SplitTopLevel(s, ":")
	if len(parts) < 2 {
		return "", "", false
	}
	property = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(strings.Join(parts[1:], ":"))
	if property == "" {
		return "", "", false
	}
	return property, value, true
}

// splitAtRuleName splits an at-rule prelude into its keyword
// (lower-cased, e.g. "@media") and the remaining condition text.
func splitAtRuleName(prelude string) (name, rest string) {
	prelude = strings.TrimSpace(prelude)
	i := 0
	for i < len(prelude) && !isBoundary(prelude[i]) {
		i++
	}
	return strings.ToLower(prelude[:i]), strings.TrimSpace(prelude[i:])
}

func isBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '('
}
