package contam

import (
	"testing"

	"som/graphbuild"
	"som/rules"
)

// wire builds tree/effective-parent/graph structure for a set of
// already-created rules, mirroring what the pipeline does before
// handing off to contam.
func wire(t *testing.T, arena *rules.Arena) []string {
	t.Helper()
	graphbuild.BuildTree(arena)
	if warnings := graphbuild.ResolvePortals(arena, graphbuild.AliasTable{}); len(warnings) != 0 {
		t.Fatalf("unexpected portal warnings: %+v", warnings)
	}
	g, warnings := graphbuild.BuildEffectiveGraph(arena)
	if len(warnings) != 0 {
		t.Fatalf("unexpected graph warnings: %+v", warnings)
	}
	order, err := ComputeFinalClass(arena, g)
	if err != nil {
		t.Fatalf("ComputeFinalClass: %v", err)
	}
	AssignBoundaries(arena, order)
	AssignEmitTypes(arena)
	return order
}

func TestFinalClassInheritsFromDynamicParent(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	title := arena.NewRule(".card h2", 2)
	title.LocalClass = rules.Static

	wire(t, arena)

	if title.FinalClass != rules.Deterministic {
		t.Errorf("title.FinalClass = %v, want Deterministic", title.FinalClass)
	}
	if title.ContaminationSource != card.ID {
		t.Errorf("title.ContaminationSource = %q, want %q", title.ContaminationSource, card.ID)
	}
}

func TestFinalClassDoesNotDowngrade(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Static
	title := arena.NewRule(".card h2", 2)
	title.LocalClass = rules.Deterministic

	wire(t, arena)

	if title.FinalClass != rules.Deterministic {
		t.Errorf("title.FinalClass = %v, want Deterministic (own local class)", title.FinalClass)
	}
	if title.ContaminationSource != "" {
		t.Errorf("ContaminationSource = %q, want empty (not contaminated)", title.ContaminationSource)
	}
}

func TestContaminationSourceChainsToOriginalAncestor(t *testing.T) {
	arena := rules.NewArena()
	grandparent := arena.NewRule(".app", 1)
	grandparent.LocalClass = rules.Deterministic
	parent := arena.NewRule(".app .card", 2)
	parent.LocalClass = rules.Static
	child := arena.NewRule(".app .card h2", 3)
	child.LocalClass = rules.Static

	wire(t, arena)

	if child.ContaminationSource != grandparent.ID {
		t.Errorf("child.ContaminationSource = %q, want %q (original source, not immediate parent)", child.ContaminationSource, grandparent.ID)
	}
}

func TestBoundaryRootHasNoDynamicParent(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	title := arena.NewRule(".card h2", 2)
	title.LocalClass = rules.Deterministic

	wire(t, arena)

	if card.BoundaryID != card.ID {
		t.Errorf("card.BoundaryID = %q, want %q (itself)", card.BoundaryID, card.ID)
	}
	if title.BoundaryID != card.ID {
		t.Errorf("title.BoundaryID = %q, want %q (inherited)", title.BoundaryID, card.ID)
	}
}

func TestEmitTypeStaticRule(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule("h1", 1)
	r.LocalClass = rules.Static

	wire(t, arena)

	if r.EmitType != rules.EmitStatic {
		t.Errorf("EmitType = %v, want EmitStatic", r.EmitType)
	}
}

func TestEmitTypeBoundaryAndRuleSet(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	title := arena.NewRule(".card h2", 2)
	title.LocalClass = rules.Deterministic

	wire(t, arena)

	if card.EmitType != rules.EmitBoundary {
		t.Errorf("card.EmitType = %v, want EmitBoundary", card.EmitType)
	}
	if title.EmitType != rules.EmitRuleSet {
		t.Errorf("title.EmitType = %v, want EmitRuleSet", title.EmitType)
	}
}

func TestEmitTypeNondeterministicBypassesBoundary(t *testing.T) {
	arena := rules.NewArena()
	row := arena.NewRule("tr:nth-child(even)", 1)
	row.LocalClass = rules.Nondeterministic

	wire(t, arena)

	if row.EmitType != rules.EmitNondeterministic {
		t.Errorf("EmitType = %v, want EmitNondeterministic", row.EmitType)
	}
	// still computed for bookkeeping, but must never route as a boundary.
	if row.BoundaryID != row.ID {
		t.Errorf("BoundaryID = %q, want %q (itself, no dynamic parent)", row.BoundaryID, row.ID)
	}
}

func TestCollectSubgraphSkipsPortalChild(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	portalChild := arena.NewRule(".card .tooltip", 2)
	portalChild.LocalClass = rules.Deterministic
	portalChild.PortalTargetRaw = "tooltip-root"
	arena.NewRule(".tooltip-root", 3) // portal target, so the portal resolves

	wire(t, arena)

	members := CollectSubgraph(arena, card.BoundaryID)
	for _, m := range members {
		if m.ID == portalChild.ID {
			t.Errorf("subgraph %v should not include portal-declaring child", members)
		}
	}
}

func TestCollectSubgraphSkipsNondeterministicChild(t *testing.T) {
	arena := rules.NewArena()
	table := arena.NewRule(".table", 1)
	table.LocalClass = rules.Deterministic
	row := arena.NewRule(".table tr:nth-child(even)", 2)
	row.LocalClass = rules.Nondeterministic

	wire(t, arena)

	members := CollectSubgraph(arena, table.BoundaryID)
	for _, m := range members {
		if m.ID == row.ID {
			t.Errorf("subgraph %v should not include a NONDETERMINISTIC child", members)
		}
	}
}

func TestCollectSubgraphSortedBySourceOrder(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 5)
	card.LocalClass = rules.Deterministic
	second := arena.NewRule(".card .b", 6)
	second.LocalClass = rules.Deterministic
	first := arena.NewRule(".card .a", 2)
	first.LocalClass = rules.Deterministic

	wire(t, arena)

	members := CollectSubgraph(arena, card.BoundaryID)
	for i := 1; i < len(members); i++ {
		if members[i].SourceOrder < members[i-1].SourceOrder {
			t.Errorf("members not sorted by source order: %+v", members)
		}
	}
}

func TestBuildManifestExcludesTheme(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	card.Deps = []rules.Dependency{
		{OwnerID: card.ID, Property: "color", Kind: rules.Theme},
		{OwnerID: card.ID, Property: "width", Kind: rules.ParentSize},
	}

	wire(t, arena)

	manifest := BuildManifest(arena, card.BoundaryID)
	if len(manifest.Deps) != 1 || manifest.Deps[0].Kind != rules.ParentSize {
		t.Fatalf("manifest deps = %+v, want only the ParentSize dep", manifest.Deps)
	}
}

func TestBuildManifestSetsPortalFlag(t *testing.T) {
	arena := rules.NewArena()
	card := arena.NewRule(".card", 1)
	card.LocalClass = rules.Deterministic
	card.PortalTargetRaw = "somewhere"
	card.Deps = []rules.Dependency{{OwnerID: card.ID, Property: "width", Kind: rules.ParentSize}}
	arena.NewRule(".somewhere", 2) // portal target, so the portal resolves

	wire(t, arena)

	manifest := BuildManifest(arena, card.BoundaryID)
	if manifest.Flags&rules.FlagPortalDependency == 0 {
		t.Error("expected FlagPortalDependency to be set")
	}
}

func TestBuildManifestSetsContaminationOnlyWhenEmpty(t *testing.T) {
	arena := rules.NewArena()
	parent := arena.NewRule(".app", 1)
	parent.LocalClass = rules.Deterministic
	child := arena.NewRule(".app .label", 2)
	child.LocalClass = rules.Static

	wire(t, arena)

	manifest := BuildManifest(arena, parent.BoundaryID)
	if manifest.Flags&rules.FlagContaminationOnly == 0 {
		t.Errorf("expected FlagContaminationOnly, manifest = %+v", manifest)
	}
}
