// Package explain renders the tree-parent/effective-parent/boundary
// chain and subgraph membership for one rule, for the `som explain`
// CLI subcommand.
package explain

import (
	"fmt"

	"som/contam"
	"som/rules"
	"som/utils/debug"
)

// Dump writes a human-readable explanation of selector's position in
// arena's analyzed graph: its declarations, dependencies, tree
// ancestry, effective-parent chain, boundary membership, and (when it
// is itself a boundary) the rules in its subgraph.
func Dump(arena *rules.Arena, selector string) (string, error) {
	r := findRule(arena, selector)
	if r == nil {
		return "", fmt.Errorf("explain: no rule for selector %q", selector)
	}

	tw := debug.NewTreeWriter()
	tw.Line(0, "%s", r.ID)
	tw.TextBlock(1, "selector", r.Selector)
	tw.Line(1, "local_class: %s", r.LocalClass)
	tw.Line(1, "final_class: %s", r.FinalClass)
	tw.Line(1, "emit_type: %s", r.EmitType)
	if r.ContaminationSource != "" {
		tw.Line(1, "contamination_source: %s", r.ContaminationSource)
	}
	if r.BoundaryID != "" {
		tw.Line(1, "boundary: %s", r.BoundaryID)
	}
	if r.PortalTargetRaw != "" {
		tw.Line(1, "portal_target_raw: %s", r.PortalTargetRaw)
		tw.Line(1, "portal_target_id: %s", r.PortalTargetID)
	}
	if r.IsContainerBoundary {
		tw.Line(1, "container_name: %s", r.ContainerName)
	}

	if len(r.DeclarationOrder) > 0 {
		tw.Line(1, "declarations:")
		for _, name := range r.DeclarationOrder {
			if value, ok := r.NormalizedDeclarations[name]; ok {
				tw.TextBlock(2, name, value)
			}
		}
	}

	if len(r.Deps) > 0 {
		tw.Line(1, "dependencies:")
		for _, d := range r.Deps {
			tw.Line(2, "%s(%s) = %s", d.Kind, d.Property, d.Expression)
		}
	}

	if len(r.Warnings) > 0 {
		tw.Line(1, "warnings:")
		for _, w := range r.Warnings {
			tw.Line(2, "%s: %s", w.Kind, w.Message)
		}
	}

	tw.Line(1, "tree_parent: %s", orNone(r.TreeParentID))
	tw.Line(1, "effective_parent: %s", orNone(r.EffectiveParentID))

	if r.EmitType == rules.EmitBoundary {
		members := contam.CollectSubgraph(arena, r.ID)
		tw.Line(1, "subgraph (%d members):", len(members))
		for _, m := range members {
			tw.Line(2, "%s %q (%s)", m.ID, m.Selector, m.EmitType)
		}
	}

	return tw.String(), nil
}

func findRule(arena *rules.Arena, selector string) *rules.Rule {
	for _, r := range arena.All() {
		if r.Selector == selector || r.ID == selector {
			return r
		}
	}
	return nil
}

func orNone(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}
