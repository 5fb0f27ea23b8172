package graphbuild

import (
	"testing"

	"github.com/dominikbraun/graph"

	"som/rules"
)

func newRule(arena *rules.Arena, selector string, order int) *rules.Rule {
	return arena.NewRule(selector, order)
}

func TestBuildTreeParentChildRelationship(t *testing.T) {
	arena := rules.NewArena()
	card := newRule(arena, ".card", 1)
	title := newRule(arena, ".card h2", 2)

	BuildTree(arena)

	if title.TreeParentID != card.ID {
		t.Errorf("title.TreeParentID = %q, want %q", title.TreeParentID, card.ID)
	}
	if len(card.TreeChildren) != 1 || card.TreeChildren[0] != title.ID {
		t.Errorf("card.TreeChildren = %v, want [%q]", card.TreeChildren, title.ID)
	}
}

func TestBuildTreeWalksPastUnknownAncestors(t *testing.T) {
	arena := rules.NewArena()
	nav := newRule(arena, "nav", 1)
	link := newRule(arena, "nav ul li a", 2)

	BuildTree(arena)

	if link.TreeParentID != nav.ID {
		t.Errorf("link.TreeParentID = %q, want %q (walking past 'nav ul' and 'nav ul li')", link.TreeParentID, nav.ID)
	}
}

func TestBuildTreeNoParentFound(t *testing.T) {
	arena := rules.NewArena()
	r := newRule(arena, "h1", 1)

	BuildTree(arena)

	if r.TreeParentID != "" {
		t.Errorf("TreeParentID = %q, want empty", r.TreeParentID)
	}
}

func TestResolvePortalsWithoutPortalUsesTreeParent(t *testing.T) {
	arena := rules.NewArena()
	card := newRule(arena, ".card", 1)
	title := newRule(arena, ".card h2", 2)
	BuildTree(arena)

	warnings := ResolvePortals(arena, AliasTable{})
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	if title.EffectiveParentID != card.ID {
		t.Errorf("title.EffectiveParentID = %q, want %q", title.EffectiveParentID, card.ID)
	}
}

func TestResolvePortalsByRuleID(t *testing.T) {
	arena := rules.NewArena()
	modal := newRule(arena, "#modal-root", 1)
	dialog := newRule(arena, ".dialog", 2)
	dialog.PortalTargetRaw = modal.ID
	BuildTree(arena)

	warnings := ResolvePortals(arena, AliasTable{})
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	if dialog.EffectiveParentID != modal.ID {
		t.Errorf("dialog.EffectiveParentID = %q, want %q", dialog.EffectiveParentID, modal.ID)
	}
	if dialog.TreeParentID == dialog.EffectiveParentID && dialog.TreeParentID != "" {
		t.Error("portal resolution should not simply echo tree parenthood")
	}
}

func TestResolvePortalsByHashIDSelector(t *testing.T) {
	arena := rules.NewArena()
	root := newRule(arena, "#Root", 1)
	dialog := newRule(arena, ".dialog", 2)
	dialog.PortalTargetRaw = "Root" // case differs from the rule id, forcing the "#<id>" selector match
	BuildTree(arena)

	ResolvePortals(arena, AliasTable{})
	if dialog.EffectiveParentID != root.ID {
		t.Errorf("dialog.EffectiveParentID = %q, want %q", dialog.EffectiveParentID, root.ID)
	}
}

func TestResolvePortalsByAlias(t *testing.T) {
	arena := rules.NewArena()
	root := newRule(arena, ".portal-target", 1)
	dialog := newRule(arena, ".dialog", 2)
	dialog.PortalTargetRaw = "Main-Modal"
	BuildTree(arena)

	ResolvePortals(arena, AliasTable{"main-modal": root.ID})
	if dialog.EffectiveParentID != root.ID {
		t.Errorf("dialog.EffectiveParentID = %q, want %q", dialog.EffectiveParentID, root.ID)
	}
}

func TestResolvePortalsMissingTargetWarns(t *testing.T) {
	arena := rules.NewArena()
	dialog := newRule(arena, ".dialog", 1)
	dialog.PortalTargetRaw = "nowhere"
	BuildTree(arena)

	warnings := ResolvePortals(arena, AliasTable{})
	if len(warnings) != 1 || warnings[0].Kind != rules.PortalMissing {
		t.Fatalf("warnings = %+v, want one PortalMissing", warnings)
	}
	if dialog.EffectiveParentID != "" {
		t.Errorf("EffectiveParentID = %q, want empty", dialog.EffectiveParentID)
	}
}

func TestResolveContainerDepsFindsNearestAncestor(t *testing.T) {
	arena := rules.NewArena()
	panel := newRule(arena, ".panel", 1)
	panel.IsContainerBoundary = true
	child := newRule(arena, ".panel .item", 2)
	child.Deps = []rules.Dependency{{Kind: rules.ContainerSize, Property: "width"}}
	BuildTree(arena)

	registry := BuildContainerRegistry(arena)
	warnings := ResolveContainerDeps(arena, registry)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	if child.Deps[0].ContainerID != panel.ID {
		t.Errorf("ContainerID = %q, want %q", child.Deps[0].ContainerID, panel.ID)
	}
}

func TestResolveContainerDepsMissingContainerWarns(t *testing.T) {
	arena := rules.NewArena()
	child := newRule(arena, ".item", 1)
	child.Deps = []rules.Dependency{{Kind: rules.ContainerSize, Property: "width"}}
	BuildTree(arena)

	registry := BuildContainerRegistry(arena)
	warnings := ResolveContainerDeps(arena, registry)
	if len(warnings) != 1 || warnings[0].Kind != rules.MissingContainer {
		t.Fatalf("warnings = %+v, want one MissingContainer", warnings)
	}
	if child.Deps[0].ContainerID != "" {
		t.Errorf("ContainerID = %q, want empty", child.Deps[0].ContainerID)
	}
}

func TestBuildEffectiveGraphOrdersParentBeforeChild(t *testing.T) {
	arena := rules.NewArena()
	card := newRule(arena, ".card", 1)
	title := newRule(arena, ".card h2", 2)
	BuildTree(arena)
	ResolvePortals(arena, AliasTable{})

	g, warnings := BuildEffectiveGraph(arena)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	order, err := graph.TopologicalSort(g)
	if err != nil {
		t.Fatalf("topological sort failed: %v", err)
	}
	cardIdx, titleIdx := -1, -1
	for i, id := range order {
		if id == card.ID {
			cardIdx = i
		}
		if id == title.ID {
			titleIdx = i
		}
	}
	if cardIdx == -1 || titleIdx == -1 || cardIdx >= titleIdx {
		t.Errorf("order = %v, want %q before %q", order, card.ID, title.ID)
	}
}
