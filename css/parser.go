package css

import (
	"strings"

	"go.uber.org/zap"

	selpkg "som/selectors"
)

// Parser tokenizes stylesheet source text into ParsedRules, tolerant of
// malformed input throughout.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse tokenizes data into a ParseResult. It never raises on malformed
// input: unterminated blocks and stray braces are tolerated by falling
// through to end-of-input, and whatever parsed cleanly is returned.
func (p *Parser) Parse(data []byte, source ...string) *ParseResult {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("parsing stylesheet", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	clean := stripComments(string(data))
	res := &ParseResult{RawTokens: make(map[string]string)}
	order := 0
	p.parseBlock([]string{""}, "", clean, res, &order)

	p.log.Debug("parsed stylesheet", zap.Int("rules", len(res.Rules)), zap.Int("tokens", len(res.RawTokens)))
	return res
}

// parseBlock parses the statements of body, which is scoped to the
// selectors in scope (the sentinel []string{""} means "no enclosing
// selector", i.e. the stylesheet root) and the already-combined media
// condition media. Declarations found directly in body are emitted
// once per selector in scope; nested rulesets are expanded against
// scope before recursing.
func (p *Parser) parseBlock(scope []string, media string, body string, res *ParseResult, order *int) {
	var decls []Declaration
	var sawCustomProperty bool
	var descend []func()
	for _, stmt := range splitTopLevelStatements(body) {
		if !stmt.hasBody {
			property, value, ok := splitDeclaration(stmt.prelude)
			if !ok {
				continue
			}
			if strings.HasPrefix(property, "--") {
				res.RawTokens[property] = value
				sawCustomProperty = true
				continue
			}
			decls = append(decls, Declaration{Property: strings.ToLower(property), Value: value})
			continue
		}

		prelude := strings.TrimSpace(stmt.prelude)
		if strings.HasPrefix(prelude, "@") {
			descend = append(descend, func() { p.handleAtRule(prelude, stmt.body, scope, media, res, order) })
			continue
		}

		inner := selpkg.SplitSelectorList(prelude)
		if len(inner) == 0 {
			continue
		}
		expanded := expandNesting(scope, inner)
		descend = append(descend, func() { p.parseBlock(expanded, media, stmt.body, res, order) })
	}

	// A block whose only declarations were custom properties still gets
	// a rule: it is classified (Static, no properties) even though it
	// contributes nothing to the static tier.
	if len(decls) > 0 || sawCustomProperty {
		for _, sel := range scope {
			if sel == "" {
				continue
			}
			*order++
			res.Rules = append(res.Rules, ParsedRule{
				Selector:     sel,
				Declarations: decls,
				MediaQuery:   media,
				SourceOrder:  *order,
			})
		}
	}

	// Nested rulesets and at-rules are walked only after the parent's own
	// rule (if any) has already claimed its SourceOrder, so a rule is
	// always ordered before its own nested children.
	for _, fn := range descend {
		fn()
	}
}

// handleAtRule dispatches one at-rule block. @media wraps its body,
// combining its condition into media with " and ". @layer and
// @supports are transparent wrappers: their body is parsed in place
// without contributing a dependency. @keyframes, @font-face, and
// @import bodies are parsed only so malformed input can't crash the
// scanner; their contents are never lifted to rules.
func (p *Parser) handleAtRule(prelude, body string, scope []string, media string, res *ParseResult, order *int) {
	name, cond := splitAtRuleName(prelude)
	switch name {
	case "@media":
		combined := cond
		if media != "" {
			combined = media + " and " + cond
		}
		p.parseBlock(scope, combined, body, res, order)
	case "@layer", "@supports":
		p.parseBlock(scope, media, body, res, order)
	case "@keyframes", "@font-face", "@import":
		// Parsed only for safety; a malformed body must not stall the
		// scanner, but nothing inside is ever emitted as a rule.
		splitTopLevelStatements(body)
	default:
		p.log.Debug("skipping unrecognized at-rule", zap.String("name", name))
	}
}

// expandNesting implements native CSS nesting's cartesian expansion:
// each combination of a parent selector and an inner prelude produces
// one expanded selector.
//   - "&" in the inner prelude is replaced by the parent selector.
//   - A prelude starting with >, +, or ~ is concatenated with a space
//     after the parent.
//   - Any other (bare) prelude is concatenated as a descendant, with a
//     space.
//
// The sentinel parent "" (stylesheet root) passes inner through with
// every "&" removed: there is no enclosing selector to nest against.
func expandNesting(parents []string, inner []string) []string {
	out := make([]string, 0, len(parents)*len(inner))
	for _, parent := range parents {
		for _, in := range inner {
			if parent == "" {
				out = append(out, strings.ReplaceAll(in, "&", ""))
				continue
			}
			if strings.Contains(in, "&") {
				out = append(out, strings.ReplaceAll(in, "&", parent))
				continue
			}
			// Both a combinator-prefixed prelude ("> h2") and a bare
			// descendant prelude ("h2") concatenate the same way.
			out = append(out, parent+" "+in)
		}
	}
	return out
}
