package binfmt

import (
	"testing"

	"som/contam"
	"som/graphbuild"
	"som/pool"
	"som/rules"
)

// wire runs the graph-build and contamination passes a real pipeline
// would run before handing an arena to Emit.
func wire(t *testing.T, arena *rules.Arena) {
	t.Helper()
	graphbuild.BuildTree(arena)
	if warnings := graphbuild.ResolvePortals(arena, graphbuild.AliasTable{}); len(warnings) != 0 {
		t.Fatalf("unexpected portal warnings: %+v", warnings)
	}
	g, warnings := graphbuild.BuildEffectiveGraph(arena)
	if len(warnings) != 0 {
		t.Fatalf("unexpected graph warnings: %+v", warnings)
	}
	order, err := contam.ComputeFinalClass(arena, g)
	if err != nil {
		t.Fatalf("ComputeFinalClass: %v", err)
	}
	contam.AssignBoundaries(arena, order)
	contam.AssignEmitTypes(arena)
}

// buildScenarioOne wires up the §8 concrete scenario 1 fixture:
// `.btn { color:#fff; padding:8px 16px; } .layout { width:100%; }
// .layout .panel { color:blue; }`.
func buildScenarioOne(t *testing.T) *rules.Arena {
	t.Helper()
	arena := rules.NewArena()

	btn := arena.NewRule(".btn", 1)
	btn.LocalClass = rules.Static
	btn.NormalizedDeclarations = map[string]string{
		"color":   "#FFFFFFFF",
		"padding": "8px 16px",
	}

	layout := arena.NewRule(".layout", 2)
	layout.LocalClass = rules.Deterministic
	layout.NormalizedDeclarations = map[string]string{"width": "100%"}
	layout.Deps = []rules.Dependency{{
		OwnerID:          layout.ID,
		Property:         "width",
		Kind:             rules.ParentSize,
		InvalidationMask: rules.InvalidationMask(rules.ParentSize, "width"),
	}}

	panel := arena.NewRule(".layout .panel", 3)
	panel.LocalClass = rules.Static
	panel.NormalizedDeclarations = map[string]string{"color": "blue"}

	wire(t, arena)
	return arena
}

func TestEmitProducesValidFileHeader(t *testing.T) {
	arena := buildScenarioOne(t)
	out, err := Emit(arena)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	header, err := DecodeFileHeader(out.Bytes)
	if err != nil {
		t.Fatalf("DecodeFileHeader: %v", err)
	}
	if header.SectionCount != sectionCount {
		t.Errorf("SectionCount = %d, want %d", header.SectionCount, sectionCount)
	}
}

func TestEmitScenarioOneStaticTierHasOnlyBtn(t *testing.T) {
	arena := buildScenarioOne(t)
	out, err := Emit(arena)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rest := out.Bytes[fileHeaderSize:]
	_, poolLen, err := decodePoolForTest(rest)
	if err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	staticRecords, _, err := DecodeStaticTier(rest[poolLen:])
	if err != nil {
		t.Fatalf("DecodeStaticTier: %v", err)
	}
	if len(staticRecords) != 1 {
		t.Fatalf("static records = %d, want 1 (only .btn)", len(staticRecords))
	}
	if staticRecords[0].Hash != rules.HashSelector(".btn") {
		t.Errorf("static record hash = %#x, want hash(.btn)", staticRecords[0].Hash)
	}
	if len(staticRecords[0].Properties) != 2 {
		t.Errorf(".btn properties = %d, want 2 (color, padding)", len(staticRecords[0].Properties))
	}
}

func TestEmitScenarioOneBoundaryHasPanelAsRuleSet(t *testing.T) {
	arena := buildScenarioOne(t)
	out, err := Emit(arena)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rest := out.Bytes[fileHeaderSize:]
	_, poolLen, err := decodePoolForTest(rest)
	if err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	rest = rest[poolLen:]
	_, staticLen, err := decodeStaticForTest(rest)
	if err != nil {
		t.Fatalf("decode static: %v", err)
	}
	rest = rest[staticLen:]

	index, indexLen, err := DecodeDynamicIndex(rest)
	if err != nil {
		t.Fatalf("DecodeDynamicIndex: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("dynamic index entries = %d, want 1 (.layout boundary)", len(index))
	}
	tier := rest[indexLen:]

	decoded, _, err := DecodeRecordAt(tier, index[0].Offset)
	if err != nil {
		t.Fatalf("DecodeRecordAt: %v", err)
	}
	marker, ok := decoded.(*BoundaryMarkerRecord)
	if !ok {
		t.Fatalf("decoded record type = %T, want *BoundaryMarkerRecord", decoded)
	}
	if marker.Hash != rules.HashSelector(".layout") {
		t.Errorf("marker hash = %#x, want hash(.layout)", marker.Hash)
	}
	if len(marker.Deps) != 1 || marker.Deps[0].Kind != rules.ParentSize {
		t.Fatalf("marker.Deps = %+v, want one ParentSize dep", marker.Deps)
	}
	if len(marker.SubgraphHashes) != 2 {
		t.Fatalf("marker.SubgraphHashes = %v, want 2 members (.layout, .layout .panel)", marker.SubgraphHashes)
	}
	if len(marker.RuleSets) != 1 || marker.RuleSets[0].Hash != rules.HashSelector(".layout .panel") {
		t.Fatalf("marker.RuleSets = %+v, want one rule set for .layout .panel", marker.RuleSets)
	}
}

// TestEmitInternsNonBoundaryMemberDepProperty locks in a fix: a
// boundary's manifest (contam.BuildManifest) folds in every subgraph
// member's deps, not just the boundary rule's own, so a member-only
// dep property must still be interned or its prop_ref decodes as
// pool.NullRef.
func TestEmitInternsNonBoundaryMemberDepProperty(t *testing.T) {
	arena := rules.NewArena()

	layout := arena.NewRule(".layout", 1)
	layout.LocalClass = rules.Deterministic
	layout.NormalizedDeclarations = map[string]string{"width": "100%"}
	layout.Deps = []rules.Dependency{{
		OwnerID:  layout.ID,
		Property: "width",
		Kind:     rules.ParentSize,
	}}

	panel := arena.NewRule(".layout .panel", 2)
	panel.LocalClass = rules.Deterministic
	panel.NormalizedDeclarations = map[string]string{"color": "blue"}
	panel.Deps = []rules.Dependency{{
		OwnerID:  panel.ID,
		Property: "__media__",
		Kind:     rules.Viewport,
	}}

	wire(t, arena)
	out, err := Emit(arena)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rest := out.Bytes[fileHeaderSize:]
	p, poolLen, err := decodePoolForTest(rest)
	if err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	rest = rest[poolLen:]
	_, staticLen, err := decodeStaticForTest(rest)
	if err != nil {
		t.Fatalf("decode static: %v", err)
	}
	rest = rest[staticLen:]

	index, indexLen, err := DecodeDynamicIndex(rest)
	if err != nil {
		t.Fatalf("DecodeDynamicIndex: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("dynamic index entries = %d, want 1", len(index))
	}
	decoded, _, err := DecodeRecordAt(rest[indexLen:], index[0].Offset)
	if err != nil {
		t.Fatalf("DecodeRecordAt: %v", err)
	}
	marker, ok := decoded.(*BoundaryMarkerRecord)
	if !ok {
		t.Fatalf("decoded record type = %T, want *BoundaryMarkerRecord", decoded)
	}

	found := false
	for _, d := range marker.Deps {
		if d.PropRef == pool.NullRef {
			t.Errorf("dep %+v has unresolved prop_ref (property never interned)", d)
			continue
		}
		if name, ok := p.Resolve(d.PropRef); ok && name == "__media__" {
			found = true
		}
	}
	if !found {
		t.Errorf("marker.Deps = %+v, want an entry resolving to __media__", marker.Deps)
	}
}

// decodePoolForTest and decodeStaticForTest let tests walk the section
// stream without re-implementing section skipping; they delegate to
// the pool/static decoders used by the real loader.
func decodePoolForTest(data []byte) (*pool.Pool, int, error) {
	return pool.Decode(data)
}

func decodeStaticForTest(data []byte) ([]StaticRecord, int, error) {
	return DecodeStaticTier(data)
}
