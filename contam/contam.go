// Package contam implements the contamination and boundary pass:
// propagating classification up the effective-parent chain, assigning
// each dynamic rule to a boundary, and assembling each boundary's
// dependency manifest.
package contam

import (
	"sort"

	"github.com/dominikbraun/graph"

	"som/rules"
)

// ComputeFinalClass walks the effective-parent DAG in topological
// order (ancestors before descendants — guaranteed to exist since g
// was built with graph.PreventCycles) and assigns FinalClass and
// ContaminationSource by the max-monoid rule: a rule adopts its
// effective parent's final class only when that parent ranks strictly
// higher than the rule's own local class. Returns the topological
// order used, so AssignBoundaries can reuse it without re-sorting.
func ComputeFinalClass(arena *rules.Arena, g graph.Graph[string, string]) ([]string, error) {
	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		r := arena.Lookup(id)
		if r == nil {
			continue
		}
		r.FinalClass = r.LocalClass
		r.ContaminationSource = ""
		if r.EffectiveParentID == "" {
			continue
		}
		parent := arena.Lookup(r.EffectiveParentID)
		if parent == nil || parent.FinalClass <= r.LocalClass {
			continue
		}
		r.FinalClass = parent.FinalClass
		if parent.ContaminationSource != "" {
			r.ContaminationSource = parent.ContaminationSource
		} else {
			r.ContaminationSource = parent.ID
		}
	}
	return order, nil
}

// AssignBoundaries sets BoundaryID for every rule whose final class is
// dynamic: a rule with no effective parent, or whose effective parent
// is STATIC, is a boundary root; every other dynamic rule inherits its
// effective parent's boundary id. order must list parents before
// children (the same topological order ComputeFinalClass returned).
func AssignBoundaries(arena *rules.Arena, order []string) {
	for _, id := range order {
		r := arena.Lookup(id)
		if r == nil {
			continue
		}
		if r.FinalClass == rules.Static {
			r.BoundaryID = ""
			continue
		}
		parent := arena.Lookup(r.EffectiveParentID)
		if parent == nil || parent.FinalClass == rules.Static {
			r.BoundaryID = r.ID
			continue
		}
		r.BoundaryID = parent.BoundaryID
	}
}

// AssignEmitTypes sets EmitType for every rule. NONDETERMINISTIC final
// class is checked ahead of boundary/ruleset routing and always goes
// to the dedicated nondeterministic record, even though such a rule
// would otherwise trivially qualify as the boundary of one; only
// DETERMINISTIC rules participate in the boundary/ruleset split.
func AssignEmitTypes(arena *rules.Arena) {
	for _, r := range arena.All() {
		switch {
		case r.FinalClass == rules.Nondeterministic:
			r.EmitType = rules.EmitNondeterministic
		case r.FinalClass == rules.Static:
			r.EmitType = rules.EmitStatic
		case r.BoundaryID == r.ID:
			r.EmitType = rules.EmitBoundary
		default:
			r.EmitType = rules.EmitRuleSet
		}
	}
}

// CollectSubgraph returns boundary B's members: B itself plus every
// descendant reachable via TreeChildren without crossing a portal, a
// non-DETERMINISTIC rule, or into a different boundary. The returned
// members are sorted by SourceOrder.
func CollectSubgraph(arena *rules.Arena, boundaryID string) []*rules.Rule {
	root := arena.Lookup(boundaryID)
	if root == nil {
		return nil
	}

	var members []*rules.Rule
	visited := make(map[string]bool)

	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		r := arena.Lookup(id)
		if r == nil {
			return
		}
		members = append(members, r)
		for _, childID := range r.TreeChildren {
			child := arena.Lookup(childID)
			switch {
			case child == nil:
				continue
			case child.PortalTargetRaw != "":
				continue
			case child.FinalClass != rules.Deterministic:
				continue
			case child.BoundaryID != boundaryID:
				continue
			}
			walk(childID)
		}
	}
	walk(boundaryID)

	sort.Slice(members, func(i, j int) bool {
		return members[i].SourceOrder < members[j].SourceOrder
	})
	return members
}

// BuildManifest assembles boundary B's dependency manifest: deps from
// every subgraph member, deduplicated and with THEME excluded (theme
// updates invalidate separately, never through a boundary manifest).
func BuildManifest(arena *rules.Arena, boundaryID string) *rules.BoundaryManifest {
	manifest := &rules.BoundaryManifest{BoundaryID: boundaryID}
	for _, m := range CollectSubgraph(arena, boundaryID) {
		for _, dep := range m.Deps {
			manifest.AddDep(dep)
		}
		if m.PortalTargetRaw != "" {
			manifest.Flags |= rules.FlagPortalDependency
		}
	}
	if len(manifest.Deps) == 0 {
		manifest.Flags |= rules.FlagContaminationOnly
	}
	return manifest
}
