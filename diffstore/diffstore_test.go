package diffstore

import (
	"path/filepath"
	"testing"

	"som/rules"
)

func buildArena(pairs map[string]rules.Classification) []*rules.Rule {
	arena := rules.NewArena()
	order := 0
	for sel, class := range pairs {
		order++
		r := arena.NewRule(sel, order)
		r.FinalClass = class
	}
	return arena.All()
}

func TestCompareAgainstMissingSnapshotReportsEverythingAdded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.sqlite")
	all := buildArena(map[string]rules.Classification{".btn": rules.Static})

	d, err := Compare(path, all)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(d.Added) != 1 || d.Added[0] != ".btn" {
		t.Errorf("Added = %v, want [.btn]", d.Added)
	}
	if len(d.Removed) != 0 || len(d.Changed) != 0 {
		t.Errorf("Removed/Changed = %v/%v, want none", d.Removed, d.Changed)
	}
}

func TestSaveThenCompareUnchangedIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.sqlite")
	all := buildArena(map[string]rules.Classification{
		".btn":    rules.Static,
		".layout": rules.Deterministic,
	})

	if err := Save(path, all); err != nil {
		t.Fatalf("Save: %v", err)
	}

	d, err := Compare(path, all)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !d.Empty() {
		t.Errorf("Diff = %+v, want empty", d)
	}
}

func TestCompareDetectsAddedRemovedAndChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.sqlite")
	before := buildArena(map[string]rules.Classification{
		".btn":    rules.Static,
		".layout": rules.Deterministic,
		".gone":   rules.Static,
	})
	if err := Save(path, before); err != nil {
		t.Fatalf("Save: %v", err)
	}

	after := buildArena(map[string]rules.Classification{
		".btn":    rules.Static,
		".layout": rules.Nondeterministic,
		".new":    rules.Static,
	})

	d, err := Compare(path, after)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(d.Added) != 1 || d.Added[0] != ".new" {
		t.Errorf("Added = %v, want [.new]", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != ".gone" {
		t.Errorf("Removed = %v, want [.gone]", d.Removed)
	}
	if len(d.Changed) != 1 || d.Changed[0].Selector != ".layout" {
		t.Errorf("Changed = %+v, want one entry for .layout", d.Changed)
	}
	if d.Changed[0].OldClass != rules.Deterministic.String() || d.Changed[0].NewClass != rules.Nondeterministic.String() {
		t.Errorf("Changed[0] = %+v, want deterministic -> nondeterministic", d.Changed[0])
	}
}

func TestSaveOverwritesPriorSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.sqlite")
	first := buildArena(map[string]rules.Classification{".a": rules.Static})
	if err := Save(path, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second := buildArena(map[string]rules.Classification{".b": rules.Static})
	if err := Save(path, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	d, err := Compare(path, second)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !d.Empty() {
		t.Errorf("Diff = %+v, want empty after overwrite", d)
	}
}
