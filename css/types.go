package css

// Declaration is one raw property:value pair as written in the source,
// in encounter order. A rule's later Declaration for the same property
// overwrites the earlier one when folded into a map — the slice itself
// keeps the order so that fold can implement "last write wins".
type Declaration struct {
	Property string
	Value    string
}

// ParsedRule is one selector's declaration block after selector-list
// splitting, native-nesting expansion, and at-rule scoping have all
// been applied — one entry per individual selector, not per
// comma-separated list.
type ParsedRule struct {
	Selector     string
	Declarations []Declaration
	MediaQuery   string // combined condition text, empty if none
	SourceOrder  int
}

// ParseResult is everything Parser.Parse extracts from one stylesheet.
type ParseResult struct {
	Rules []ParsedRule
	// RawTokens collects every custom-property declaration
	// (`--name: value`) found anywhere in the source, keyed by name,
	// last write wins in source order — the declaring selector is not
	// tracked, as if every custom property were declared on a single
	// synthetic universal selector.
	RawTokens map[string]string
}
