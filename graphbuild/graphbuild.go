// Package graphbuild derives each rule's tree-parent and
// effective-parent relationships, resolves portal targets, and fills
// in the nearest container ancestor for container-relative
// dependencies.
package graphbuild

import (
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"som/rules"
	"som/selectors"
)

// BuildTree derives TreeParentID for every rule in arena by repeatedly
// dropping the selector's trailing compound token until a known
// selector is found or none remains, and populates each parent's
// TreeChildren.
func BuildTree(arena *rules.Arena) {
	bySelector := make(map[string]string)
	for _, r := range arena.All() {
		bySelector[r.Selector] = r.ID
	}

	for _, r := range arena.All() {
		sel := r.Selector
		for {
			parentSel, ok := selectors.DropTrailingSegment(sel)
			if !ok {
				break
			}
			if id, found := bySelector[parentSel]; found {
				r.TreeParentID = id
				break
			}
			sel = parentSel
		}
	}

	for _, r := range arena.All() {
		if r.TreeParentID == "" {
			continue
		}
		parent := arena.Lookup(r.TreeParentID)
		parent.TreeChildren = append(parent.TreeChildren, r.ID)
	}
	for _, r := range arena.All() {
		sort.Strings(r.TreeChildren)
	}
}

// AliasTable maps a lower-cased portal-target stem to the rule id it
// resolves to.
type AliasTable map[string]string

// ResolvePortals assigns EffectiveParentID for every rule: the
// resolved portal target when one is declared (severing tree
// parenthood), else the tree parent. An unresolvable portal target
// records a PORTAL_MISSING warning and leaves the rule with no
// effective parent at all.
func ResolvePortals(arena *rules.Arena, aliases AliasTable) []rules.Warning {
	var warnings []rules.Warning
	for _, r := range arena.All() {
		if r.PortalTargetRaw == "" {
			r.EffectiveParentID = r.TreeParentID
			continue
		}
		target, ok := resolvePortalTarget(arena, aliases, r.PortalTargetRaw)
		if !ok {
			warnings = append(warnings, rules.Warning{
				Kind:    rules.PortalMissing,
				NodeID:  r.ID,
				Message: "portal target \"" + r.PortalTargetRaw + "\" did not resolve to any rule",
			})
			r.EffectiveParentID = ""
			continue
		}
		r.PortalTargetID = target
		r.EffectiveParentID = target
	}
	return warnings
}

func resolvePortalTarget(arena *rules.Arena, aliases AliasTable, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if r := arena.Lookup(raw); r != nil {
		return r.ID, true
	}
	for _, r := range arena.All() {
		if r.Selector == raw {
			return r.ID, true
		}
	}
	for _, r := range arena.All() {
		if r.Selector == "."+raw || r.Selector == "#"+raw {
			return r.ID, true
		}
	}
	if id, ok := aliases[strings.ToLower(raw)]; ok {
		return id, true
	}
	return "", false
}

// BuildContainerRegistry collects every rule id whose IsContainerBoundary
// is set.
func BuildContainerRegistry(arena *rules.Arena) map[string]bool {
	registry := make(map[string]bool)
	for _, r := range arena.All() {
		if r.IsContainerBoundary {
			registry[r.ID] = true
		}
	}
	return registry
}

// ResolveContainerDeps fills in ContainerID for every CONTAINER_SIZE
// dependency by walking each rule's tree-parent chain (never the
// effective-parent chain — a portal doesn't sever container lookup)
// for the nearest ancestor registered as a container boundary. A dep
// with no ancestor container is retained with ContainerID empty and
// records a MISSING_CONTAINER warning.
func ResolveContainerDeps(arena *rules.Arena, registry map[string]bool) []rules.Warning {
	var warnings []rules.Warning
	for _, r := range arena.All() {
		for i, dep := range r.Deps {
			if dep.Kind != rules.ContainerSize {
				continue
			}
			if cid, ok := nearestContainer(arena, registry, r.TreeParentID); ok {
				dep.ContainerID = cid
			} else {
				warnings = append(warnings, rules.Warning{
					Kind:     rules.MissingContainer,
					NodeID:   r.ID,
					Property: dep.Property,
					Message:  "no container-type ancestor found for a container-relative unit",
				})
			}
			r.Deps[i] = dep
		}
	}
	return warnings
}

func nearestContainer(arena *rules.Arena, registry map[string]bool, startID string) (string, bool) {
	id := startID
	for id != "" {
		if registry[id] {
			return id, true
		}
		parent := arena.Lookup(id)
		if parent == nil {
			break
		}
		id = parent.TreeParentID
	}
	return "", false
}

// BuildEffectiveGraph constructs the effective-parent DAG: one edge
// per rule from its effective parent to itself. An edge that would
// close a cycle is rejected by graph.PreventCycles and turned into a
// DEP_WARNING instead of being added, and the rule's EffectiveParentID
// is cleared — the rule keeps its local class in that case, since
// contam never sees the parent edge.
func BuildEffectiveGraph(arena *rules.Arena) (graph.Graph[string, string], []rules.Warning) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	var warnings []rules.Warning

	for _, r := range arena.All() {
		_ = g.AddVertex(r.ID)
	}
	for _, r := range arena.All() {
		if r.EffectiveParentID == "" {
			continue
		}
		if err := g.AddEdge(r.EffectiveParentID, r.ID); err != nil {
			warnings = append(warnings, rules.Warning{
				Kind:    rules.DepWarning,
				NodeID:  r.ID,
				Message: "effective-parent chain cycles back to this rule; edge dropped",
			})
			r.EffectiveParentID = ""
		}
	}
	return g, warnings
}
