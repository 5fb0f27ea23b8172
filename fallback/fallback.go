// Package fallback emits the textual fallback artifact and the
// fallback map for rules the binary format cannot statically or
// deterministically capture.
package fallback

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"som/rules"
)

// Entry pairs one NONDETERMINISTIC rule with its selector hash, in the
// output order shared by the text and map artifacts: hash ascending,
// ties broken by the selector string's own lexicographic order.
type Entry struct {
	Hash     uint32
	Selector string
	Rule     *rules.Rule
}

// Entries collects every EmitNondeterministic rule in arena order and
// sorts it into fallback output order.
func Entries(all []*rules.Rule) []Entry {
	var entries []Entry
	for _, r := range all {
		if r.EmitType != rules.EmitNondeterministic {
			continue
		}
		entries = append(entries, Entry{
			Hash:     rules.HashSelector(r.Selector),
			Selector: r.Selector,
			Rule:     r,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Hash != entries[j].Hash {
			return entries[i].Hash < entries[j].Hash
		}
		return entries[i].Selector < entries[j].Selector
	})
	return entries
}

// WriteText writes the concatenated textual fallback: every
// NONDETERMINISTIC rule's selector and declarations, one block per
// rule, in fallback order. Declaration order within a block is
// insertion order: the order each property first appeared across the
// rule's merged source declarations, per rules.Rule.DeclarationOrder.
func WriteText(w io.Writer, entries []Entry) (int64, error) {
	var total int64
	for i, e := range entries {
		n, err := writeBlock(w, e.Rule)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if i < len(entries)-1 {
			n, err := fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func writeBlock(w io.Writer, r *rules.Rule) (int, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s {\n", r.Selector)
	for _, name := range r.DeclarationOrder {
		value, ok := r.NormalizedDeclarations[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %s;\n", name, value)
	}
	sb.WriteString("}\n")
	return io.WriteString(w, sb.String())
}

// Text returns WriteText's output as a string.
func Text(entries []Entry) string {
	var sb strings.Builder
	_, _ = WriteText(&sb, entries)
	return sb.String()
}

// MapEntry is one fallback-map row.
type MapEntry struct {
	Key      string // "0x<hex-hash>", lower-case, no leading zeros enforced
	Selector string
}

// Map builds the fallback map in fallback order.
func Map(entries []Entry) []MapEntry {
	out := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, MapEntry{
			Key:      fmt.Sprintf("0x%x", e.Hash),
			Selector: e.Selector,
		})
	}
	return out
}

// ToStringMap collapses Map's ordered entries into a plain map for
// lookup convenience. Callers that need deterministic iteration order
// should use Map instead.
func ToStringMap(entries []MapEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Selector
	}
	return out
}
