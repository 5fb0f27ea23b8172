package tokens

import (
	"testing"

	"som/rules"
)

func TestFlattenAbsoluteLeaf(t *testing.T) {
	raw := map[string]string{"--gap": "8px"}
	table, warnings := Flatten(raw)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	rec := table["--gap"]
	if rec.Resolved != "8px" || rec.PointerTo != "" {
		t.Errorf("record = %+v, want absolute leaf 8px", rec)
	}
}

func TestFlattenCollapsesIndirection(t *testing.T) {
	raw := map[string]string{
		"--brand":      "#336699",
		"--text-color": "var(--brand)",
	}
	table, warnings := Flatten(raw)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	rec := table["--text-color"]
	if rec.Resolved != "#336699" || rec.PointerTo != "--brand" {
		t.Errorf("record = %+v, want resolved #336699 pointing to --brand", rec)
	}
}

func TestFlattenMultiLevelIndirection(t *testing.T) {
	raw := map[string]string{
		"--base": "16px",
		"--mid":  "var(--base)",
		"--top":  "var(--mid)",
	}
	table, _ := Flatten(raw)
	rec := table["--top"]
	if rec.Resolved != "16px" || rec.PointerTo != "--base" {
		t.Errorf("record = %+v, want resolved 16px pointing to --base", rec)
	}
}

func TestFlattenUndefinedReference(t *testing.T) {
	raw := map[string]string{"--x": "var(--missing)"}
	table, warnings := Flatten(raw)
	if len(warnings) != 1 || warnings[0].Kind != rules.UndefinedToken {
		t.Fatalf("warnings = %+v, want one UndefinedToken", warnings)
	}
	if table["--x"].Resolved != "var(--missing)" {
		t.Errorf("resolved = %q, want the raw reference left intact", table["--x"].Resolved)
	}
}

func TestFlattenCycleDetected(t *testing.T) {
	raw := map[string]string{
		"--a": "var(--b)",
		"--b": "var(--a)",
	}
	_, warnings := Flatten(raw)
	found := false
	for _, w := range warnings {
		if w.Kind == rules.TokenCycle {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want a TokenCycle warning", warnings)
	}
}

func TestResolveDeclarationUnionsLeafDeps(t *testing.T) {
	raw := map[string]string{"--gap": "2vw"}
	table, _ := Flatten(raw)
	deps, warnings := ResolveDeclaration("r1", "margin-left", "var(--gap)", table)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v, want none", warnings)
	}
	if len(deps) != 1 || deps[0].Kind != rules.Viewport {
		t.Fatalf("deps = %+v, want one Viewport dep", deps)
	}
	if deps[0].Expression != "var(--gap)" {
		t.Errorf("expression = %q, want var(--gap)", deps[0].Expression)
	}
}

func TestResolveDeclarationUndefinedNoFallback(t *testing.T) {
	table, _ := Flatten(map[string]string{})
	deps, warnings := ResolveDeclaration("r1", "color", "var(--missing)", table)
	if len(deps) != 0 {
		t.Errorf("deps = %+v, want none", deps)
	}
	if len(warnings) != 1 || warnings[0].Kind != rules.UndefinedToken {
		t.Fatalf("warnings = %+v, want one UndefinedToken", warnings)
	}
}

func TestResolveDeclarationUndefinedWithFallback(t *testing.T) {
	table, _ := Flatten(map[string]string{})
	deps, warnings := ResolveDeclaration("r1", "width", "var(--missing, 50%)", table)
	if len(warnings) != 1 || warnings[0].Kind != rules.UnresolvedToken {
		t.Fatalf("warnings = %+v, want one UnresolvedToken", warnings)
	}
	if len(deps) != 1 || deps[0].Kind != rules.ParentSize {
		t.Fatalf("deps = %+v, want one ParentSize dep from the fallback", deps)
	}
}

func TestMergeSourceWinsOverExternal(t *testing.T) {
	merged := Merge(map[string]string{"--gap": "8px"}, map[string]string{"--gap": "16px"})
	if merged["--gap"] != "16px" {
		t.Errorf("--gap = %q, want source value 16px", merged["--gap"])
	}
}

func TestMergeKeepsExternalOnlyEntries(t *testing.T) {
	merged := Merge(map[string]string{"--only-external": "1px"}, map[string]string{"--gap": "16px"})
	if merged["--only-external"] != "1px" {
		t.Errorf("--only-external = %q, want 1px", merged["--only-external"])
	}
}
