package rules

import (
	"fmt"
	"strconv"

	"github.com/gosimple/slug"

	"som/selectors"
)

// EmitType selects which binary record a rule's final_class and
// boundary membership route it to.
//
// ENUM(static, boundary, ruleset, nondeterministic)
type EmitType int

const (
	// EmitStatic rules carry a fully resolved style block; no dynamic
	// record is written for them at all.
	EmitStatic EmitType = iota
	// EmitBoundary rules are the root of a dynamic subgraph: they get a
	// DynamicBoundaryMarker plus a DependencyManifest.
	EmitBoundary
	// EmitRuleSet rules are DETERMINISTIC members of someone else's
	// boundary subgraph; they get a plain RuleSet record.
	EmitRuleSet
	// EmitNondeterministic rules bypass the boundary/manifest machinery
	// entirely: they get the dedicated NONDETERMINISTIC record and a
	// fallback-text/map entry, never a RuleSet.
	EmitNondeterministic
)

var _EmitTypeNames = [...]string{"static", "boundary", "ruleset", "nondeterministic"}

func (e EmitType) String() string {
	if e < 0 || int(e) >= len(_EmitTypeNames) {
		return "unknown"
	}
	return _EmitTypeNames[e]
}

// Rule is one component node of the analyzed stylesheet graph, with
// every field the classification, graph-build, and contamination
// passes attach to it.
type Rule struct {
	ID          string
	Selector    string
	SourceOrder int

	Declarations           map[string]string
	NormalizedDeclarations map[string]string
	// DeclarationOrder lists Declarations' property names in the order
	// each first appeared across the merged source: a redeclared
	// property keeps its first-seen position, only its value updates.
	DeclarationOrder []string

	TreeParentID string
	TreeChildren []string

	// MediaQueries lists the distinct, non-empty media-query condition
	// texts carried by any source declaration that folded into this
	// rule. Synthetic VIEWPORT/USER_PREF dependencies are derived from
	// these after classification, not during it.
	MediaQueries []string

	PortalTargetRaw string // raw portal-id value, before resolution
	PortalTargetID  string // resolved rule id, empty if unresolved

	EffectiveParentID   string
	IsContainerBoundary bool
	ContainerName       string

	LocalClass          Classification
	FinalClass          Classification
	ContaminationSource string // rule id the final_class was inherited from, empty if local

	BoundaryID string // rule id of the boundary this rule belongs to, empty if none

	Deps     []Dependency
	Warnings []Warning

	EmitType EmitType
}

// Arena owns every Rule produced while analyzing one stylesheet and
// assigns each a stable, collision-free id.
type Arena struct {
	rules    []*Rule
	byID     map[string]*Rule
	idCounts map[string]int
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{
		byID:     make(map[string]*Rule),
		idCounts: make(map[string]int),
	}
}

// NewRule allocates a Rule for selector at sourceOrder, assigns it a
// stable id derived from the selector's rightmost compound token, and
// registers it in the arena.
func (a *Arena) NewRule(selector string, sourceOrder int) *Rule {
	id := a.allocateID(selector)
	r := &Rule{
		ID:                     id,
		Selector:               selector,
		SourceOrder:            sourceOrder,
		Declarations:           make(map[string]string),
		NormalizedDeclarations: make(map[string]string),
	}
	a.rules = append(a.rules, r)
	a.byID[id] = r
	return r
}

// allocateID derives a stable identifier from the selector's rightmost
// compound token, suffixing with an incrementing counter when two
// selectors slugify to the same base id.
func (a *Arena) allocateID(selector string) string {
	token := selectors.RightmostCompoundToken(selector)
	base := slug.Make(token)
	if base == "" {
		base = "rule"
	}
	count := a.idCounts[base]
	a.idCounts[base] = count + 1
	if count == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(count)
}

// Lookup returns the rule with the given id, or nil if none exists.
func (a *Arena) Lookup(id string) *Rule {
	return a.byID[id]
}

// All returns every rule in the arena, in source order.
func (a *Arena) All() []*Rule {
	return a.rules
}

// String is a debug representation, never used for anything
// binary-format relevant.
func (r *Rule) String() string {
	return fmt.Sprintf("%s %q (local=%s final=%s emit=%s)", r.ID, r.Selector, r.LocalClass, r.FinalClass, r.EmitType)
}
