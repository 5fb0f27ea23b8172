package fallback

import (
	"strings"
	"testing"

	"som/rules"
)

func TestEntriesFiltersToNondeterministicOnly(t *testing.T) {
	arena := rules.NewArena()
	row := arena.NewRule("tr:nth-child(even)", 1)
	row.EmitType = rules.EmitNondeterministic
	btn := arena.NewRule(".btn", 2)
	btn.EmitType = rules.EmitStatic

	entries := Entries(arena.All())
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Selector != "tr:nth-child(even)" {
		t.Errorf("Selector = %q", entries[0].Selector)
	}
}

func TestEntriesOrderedByHashThenSelector(t *testing.T) {
	arena := rules.NewArena()
	for _, sel := range []string{"a:hover", "b:hover", "c:hover", "d:hover"} {
		r := arena.NewRule(sel, 1)
		r.EmitType = rules.EmitNondeterministic
	}

	entries := Entries(arena.All())
	for i := 1; i < len(entries); i++ {
		if entries[i].Hash < entries[i-1].Hash {
			t.Fatalf("entries not ascending by hash: %+v", entries)
		}
		if entries[i].Hash == entries[i-1].Hash && entries[i].Selector < entries[i-1].Selector {
			t.Fatalf("hash-tied entries not ordered by selector: %+v", entries)
		}
	}
}

func TestTextContainsSelectorAndDeclarations(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule("tr:nth-child(even)", 1)
	r.EmitType = rules.EmitNondeterministic
	r.DeclarationOrder = []string{"background"}
	r.NormalizedDeclarations = map[string]string{"background": "#f8fafc"}

	out := Text(Entries(arena.All()))
	if !strings.Contains(out, "tr:nth-child(even)") {
		t.Errorf("output missing selector: %q", out)
	}
	if !strings.Contains(out, "background: #f8fafc;") {
		t.Errorf("output missing declaration: %q", out)
	}
}

func TestTextDeclarationsFollowInsertionOrder(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule("li:first-child", 1)
	r.EmitType = rules.EmitNondeterministic
	r.DeclarationOrder = []string{"z-index", "color", "margin"}
	r.NormalizedDeclarations = map[string]string{
		"z-index": "1",
		"color":   "red",
		"margin":  "0",
	}

	out := Text(Entries(arena.All()))
	zIdx := strings.Index(out, "z-index")
	colorIdx := strings.Index(out, "color")
	marginIdx := strings.Index(out, "margin")
	if !(zIdx < colorIdx && colorIdx < marginIdx) {
		t.Errorf("declarations not in insertion order: %q", out)
	}
}

func TestTextSkipsDeclarationOrderEntryMissingFromNormalized(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule("li:first-child", 1)
	r.EmitType = rules.EmitNondeterministic
	r.DeclarationOrder = []string{"color", "--unresolved"}
	r.NormalizedDeclarations = map[string]string{"color": "red"}

	out := Text(Entries(arena.All()))
	if strings.Contains(out, "--unresolved") {
		t.Errorf("output should skip a DeclarationOrder entry with no NormalizedDeclarations value: %q", out)
	}
	if !strings.Contains(out, "color: red;") {
		t.Errorf("output missing declaration: %q", out)
	}
}

func TestMapUsesLowercaseHexWith0xPrefix(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule("tr:nth-child(even)", 1)
	r.EmitType = rules.EmitNondeterministic

	entries := Entries(arena.All())
	m := Map(entries)
	if len(m) != 1 {
		t.Fatalf("map entries = %d, want 1", len(m))
	}
	if m[0].Selector != "tr:nth-child(even)" {
		t.Errorf("Selector = %q", m[0].Selector)
	}
	if strings.ToLower(m[0].Key) != m[0].Key {
		t.Errorf("Key %q is not lower-case", m[0].Key)
	}
	if !strings.HasPrefix(m[0].Key, "0x") {
		t.Errorf("Key %q missing 0x prefix", m[0].Key)
	}
}

func TestToStringMapRoundTrip(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule(".a:nth-of-type(odd)", 1)
	r.EmitType = rules.EmitNondeterministic

	entries := Entries(arena.All())
	m := Map(entries)
	asMap := ToStringMap(m)
	if asMap[m[0].Key] != ".a:nth-of-type(odd)" {
		t.Errorf("lookup mismatch: %+v", asMap)
	}
}

func TestTextEmptyWhenNoNondeterministicRules(t *testing.T) {
	arena := rules.NewArena()
	r := arena.NewRule(".btn", 1)
	r.EmitType = rules.EmitStatic

	out := Text(Entries(arena.All()))
	if out != "" {
		t.Errorf("expected empty fallback text, got %q", out)
	}
}
