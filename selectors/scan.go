// Package selectors implements a depth-tracked scanner over raw
// selector text. State is { paren_depth, bracket_depth, in_string?,
// escape? }; combinators, commas, and braces only take effect at depth
// zero and outside strings, so nothing here reaches for regular
// expressions.
//
// Every top-level splitting operation the tokenizer, graph builder, and
// rule-id derivation need — selector-list commas, combinator
// segmentation, whitespace normalization — is built on the same single
// state machine here, so the depth rules never drift between callers.
package selectors

import "strings"

// depthState is the scanner state shared by every splitter in this
// package.
type depthState struct {
	paren   int
	bracket int
	quote   byte // 0 when not inside a string, else '\'' or '"'
	escape  bool
}

func (d depthState) atTop() bool {
	return d.paren == 0 && d.bracket == 0 && d.quote == 0
}

// step advances the state past byte c.
func (d *depthState) step(c byte) {
	if d.quote != 0 {
		switch {
		case d.escape:
			d.escape = false
		case c == '\\':
			d.escape = true
		case c == d.quote:
			d.quote = 0
		}
		return
	}
	switch c {
	case '"', '\'':
		d.quote = c
	case '(':
		d.paren++
	case ')':
		if d.paren > 0 {
			d.paren--
		}
	case '[':
		d.bracket++
	case ']':
		if d.bracket > 0 {
			d.bracket--
		}
	}
}

// Scanner exposes the depth-tracked state machine directly, for callers
// that need a custom top-level condition this package doesn't already
// provide a splitter for (the css tokenizer's statement/block
// boundaries, which trigger on `;`/`{` rather than a fixed separator
// set).
type Scanner struct {
	st depthState
}

// NewScanner returns a Scanner positioned at depth zero.
func NewScanner() *Scanner {
	return &Scanner{}
}

// AtTop reports whether the scanner is currently outside every paren,
// bracket, and string literal.
func (s *Scanner) AtTop() bool {
	return s.st.atTop()
}

// Step advances the scanner past byte c.
func (s *Scanner) Step(c byte) {
	s.st.step(c)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// SplitTopLevel splits s on any byte in seps that occurs at depth zero
// and outside a string literal. Separator bytes inside (), [], or a
// quoted string never split.
func SplitTopLevel(s string, seps string) []string {
	var out []string
	var st depthState
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if st.atTop() && strings.IndexByte(seps, c) >= 0 {
			out = append(out, s[start:i])
			start = i + 1
			continue
		}
		st.step(c)
	}
	out = append(out, s[start:])
	return out
}

// NormalizeWhitespace trims and collapses runs of whitespace to a
// single space, outside of quoted string literals (so
// `[title="a  b"]` keeps its internal spacing intact).
func NormalizeWhitespace(s string) string {
	trimmed := strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(trimmed))
	var st depthState
	prevSpace := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		inString := st.quote != 0
		st.step(c)
		if !inString && isSpace(c) {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}

// SplitSelectorList splits a selector prelude on top-level commas.
// Commas inside :is(...), :where(...), :has(...), or [attr="a,b"] do
// not split.
func SplitSelectorList(s string) []string {
	parts := SplitTopLevel(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = NormalizeWhitespace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Segment is one compound-selector token in a combinator chain, along
// with the combinator that precedes it (0 for the first segment).
type Segment struct {
	Text       string
	Combinator byte // 0, ' ', '>', '+', or '~'
}

// Segments splits a normalized selector into its combinator-separated
// compound tokens, ignoring combinator characters that appear inside a
// functional pseudo-class's parentheses.
func Segments(selector string) []Segment {
	norm := NormalizeWhitespace(selector)
	if norm == "" {
		return nil
	}
	parts := SplitTopLevel(norm, " ")
	var segs []Segment
	var pending byte
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) == 1 && (p[0] == '>' || p[0] == '+' || p[0] == '~') {
			pending = p[0]
			continue
		}
		comb := byte(' ')
		if first {
			comb = 0
		} else if pending != 0 {
			comb = pending
		}
		segs = append(segs, Segment{Text: p, Combinator: comb})
		pending = 0
		first = false
	}
	return segs
}

// RightmostCompoundToken returns the last compound-selector token of
// selector, used to derive a rule's stable id.
func RightmostCompoundToken(selector string) string {
	segs := Segments(selector)
	if len(segs) == 0 {
		return NormalizeWhitespace(selector)
	}
	return segs[len(segs)-1].Text
}

// DropTrailingSegment removes the rightmost compound token and its
// leading combinator, reassembling the remainder. Repeated calls walk
// a selector up to each of its ancestor selectors in turn. ok is false
// when selector has only one segment (nothing left to drop to).
func DropTrailingSegment(selector string) (parent string, ok bool) {
	segs := Segments(selector)
	if len(segs) <= 1 {
		return "", false
	}
	segs = segs[:len(segs)-1]
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			if s.Combinator == 0 || s.Combinator == ' ' {
				b.WriteByte(' ')
			} else {
				b.WriteByte(' ')
				b.WriteByte(s.Combinator)
				b.WriteByte(' ')
			}
		}
		b.WriteString(s.Text)
	}
	return b.String(), true
}

// ContainsStructuralPseudo reports whether selector contains one of the
// structural pseudo-classes that force NONDETERMINISTIC classification.
func ContainsStructuralPseudo(selector string) bool {
	lower := strings.ToLower(selector)
	for _, p := range structuralPseudoClasses {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var structuralPseudoClasses = []string{
	":nth-child", ":nth-last-child", ":nth-of-type", ":nth-last-of-type",
	":first-child", ":last-child", ":only-child", ":has", ":empty",
}
