// Package analysis orchestrates the full pipeline from stylesheet
// source text to an analyzed rule arena: parse, fold, classify,
// resolve tokens, synthesize media-query dependencies, build the
// effective-parent graph, and propagate contamination.
package analysis

import (
	"fmt"

	"go.uber.org/zap"

	"som/classify"
	"som/contam"
	"som/css"
	"som/graphbuild"
	"som/rules"
	"som/tokens"
)

// Source is one stylesheet input, named for diagnostics and for the
// Summary Record's source-file list.
type Source struct {
	Name string
	Data []byte
}

// Options configures one Analyze call.
type Options struct {
	// ExternalTokens is an optional custom-property table supplied
	// outside the stylesheet source (e.g. a design-token file). Source
	// declarations win over these on a name collision.
	ExternalTokens map[string]string
	// Aliases resolves portal targets that aren't themselves rule ids or
	// selectors present in the arena.
	Aliases graphbuild.AliasTable
}

// Result is everything Analyze produces.
type Result struct {
	Arena    *rules.Arena
	Warnings []rules.Warning
}

// Analyzer runs the pipeline. It is safe to reuse across multiple
// Analyze calls; it holds no per-call state.
type Analyzer struct {
	log    *zap.Logger
	parser *css.Parser
}

// NewAnalyzer creates an Analyzer. log may be nil.
func NewAnalyzer(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("som-analysis")
	return &Analyzer{log: log, parser: css.NewParser(log)}
}

// Analyze runs every stage of the pipeline over sources and returns
// the fully classified, graph-built, contamination-propagated arena.
func (a *Analyzer) Analyze(sources []Source, opts Options) (*Result, error) {
	arena, rawTokens := a.parseAndFold(sources)

	table, warnings := a.resolveTokens(rawTokens, opts.ExternalTokens)

	warnings = append(warnings, a.classifyDeclarations(arena, table)...)
	warnings = append(warnings, synthesizeMediaDeps(arena)...)

	graphbuild.BuildTree(arena)
	warnings = append(warnings, graphbuild.ResolvePortals(arena, opts.Aliases)...)
	registry := graphbuild.BuildContainerRegistry(arena)
	warnings = append(warnings, graphbuild.ResolveContainerDeps(arena, registry)...)

	g, graphWarnings := graphbuild.BuildEffectiveGraph(arena)
	warnings = append(warnings, graphWarnings...)

	order, err := contam.ComputeFinalClass(arena, g)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	contam.AssignBoundaries(arena, order)
	contam.AssignEmitTypes(arena)

	attachWarningsToRules(arena, warnings)

	a.log.Debug("analysis complete",
		zap.Int("rules", len(arena.All())),
		zap.Int("warnings", len(warnings)),
	)
	return &Result{Arena: arena, Warnings: warnings}, nil
}

// parseAndFold parses every source and folds declarations by selector:
// a later ParsedRule sharing an earlier one's selector overwrites any
// property it redeclares, last write wins, in source order across
// every input file. Rules are allocated in arena in first-seen order.
func (a *Analyzer) parseAndFold(sources []Source) (*rules.Arena, map[string]string) {
	arena := rules.NewArena()
	bySelector := make(map[string]*rules.Rule)
	rawTokens := make(map[string]string)
	order := 0

	for _, src := range sources {
		res := a.parser.Parse(src.Data, src.Name)
		for name, value := range res.RawTokens {
			rawTokens[name] = value
		}
		for _, pr := range res.Rules {
			r, ok := bySelector[pr.Selector]
			if !ok {
				order++
				r = arena.NewRule(pr.Selector, order)
				bySelector[pr.Selector] = r
			}
			for _, d := range pr.Declarations {
				if _, seen := r.Declarations[d.Property]; !seen {
					r.DeclarationOrder = append(r.DeclarationOrder, d.Property)
				}
				r.Declarations[d.Property] = d.Value
			}
			if pr.MediaQuery != "" {
				r.MediaQueries = appendUniqueQuery(r.MediaQueries, pr.MediaQuery)
			}
		}
	}
	return arena, rawTokens
}

func appendUniqueQuery(queries []string, q string) []string {
	for _, existing := range queries {
		if existing == q {
			return queries
		}
	}
	return append(queries, q)
}

func (a *Analyzer) resolveTokens(raw, external map[string]string) (tokens.Table, []rules.Warning) {
	merged := tokens.Merge(external, raw)
	table, warnings := tokens.Flatten(merged)
	return table, warnings
}

// classifyDeclarations classifies every declaration on every rule,
// resolves var() references against table, folds the per-declaration
// results into each rule's NormalizedDeclarations/Deps/LocalClass, and
// applies the structural-pseudo-class override.
func (a *Analyzer) classifyDeclarations(arena *rules.Arena, table tokens.Table) []rules.Warning {
	var warnings []rules.Warning

	for _, r := range arena.All() {
		var local rules.Classification
		for _, property := range r.DeclarationOrder {
			raw := r.Declarations[property]
			res := classify.ClassifyDeclaration(r.ID, property, raw)

			extraDeps, tokWarnings := tokens.ResolveDeclaration(r.ID, property, raw, table)
			warnings = append(warnings, tokWarnings...)
			if len(extraDeps) > 0 {
				res.Deps = append(res.Deps, extraDeps...)
				res.Classification = rules.Max(res.Classification, rules.Deterministic)
			}

			warnings = append(warnings, res.Warnings...)
			r.NormalizedDeclarations[property] = res.NormalizedValue
			r.Deps = append(r.Deps, res.Deps...)
			if res.PortalTarget != "" {
				r.PortalTargetRaw = res.PortalTarget
			}
			if res.ContainerBoundary {
				r.IsContainerBoundary = true
			}
			local = rules.Max(local, res.Classification)
		}

		if dep, warn, ok := classify.ClassifySelectorStructure(r.ID, r.Selector); ok {
			r.Deps = append(r.Deps, dep)
			warnings = append(warnings, warn)
			local = rules.Max(local, rules.Nondeterministic)
		}

		r.Deps = rules.DedupDeps(r.Deps)
		rules.SortDeps(r.Deps)
		r.LocalClass = local
	}

	return warnings
}

// synthesizeMediaDeps derives synthetic VIEWPORT/USER_PREF
// dependencies from each rule's distinct media-query conditions, after
// declaration classification has already run. A condition matching
// both classify.MediaDependencyKinds indicator lists yields both deps.
func synthesizeMediaDeps(arena *rules.Arena) []rules.Warning {
	for _, r := range arena.All() {
		if len(r.MediaQueries) == 0 {
			continue
		}
		for _, q := range r.MediaQueries {
			viewport, userPref := classify.MediaDependencyKinds(q)
			if viewport {
				r.Deps = append(r.Deps, mediaDep(r.ID, rules.Viewport, "__media__", q))
				r.LocalClass = rules.Max(r.LocalClass, rules.Deterministic)
			}
			if userPref {
				r.Deps = append(r.Deps, mediaDep(r.ID, rules.UserPref, q, q))
				r.LocalClass = rules.Max(r.LocalClass, rules.Deterministic)
			}
		}
		r.Deps = rules.DedupDeps(r.Deps)
		rules.SortDeps(r.Deps)
	}
	return nil
}

func mediaDep(ownerID string, kind rules.DependencyKind, property, expression string) rules.Dependency {
	return rules.Dependency{
		OwnerID:          ownerID,
		Property:         property,
		Kind:             kind,
		InvalidationMask: rules.InvalidationMask(kind, property),
		Expression:       expression,
	}
}

// attachWarningsToRules copies every warning with a non-empty NodeID
// onto that rule's own Warnings field, for the debug-tree explainer.
// Warnings with no NodeID (token-table-level findings about a custom
// property's own definition) are left out of every rule and only
// survive in the flat list Analyze returns.
func attachWarningsToRules(arena *rules.Arena, warnings []rules.Warning) {
	for _, w := range warnings {
		if w.NodeID == "" {
			continue
		}
		if r := arena.Lookup(w.NodeID); r != nil {
			r.Warnings = append(r.Warnings, w)
		}
	}
}
