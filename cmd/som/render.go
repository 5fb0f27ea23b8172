package main

import (
	"fmt"
	"sort"
	"strings"

	"som/diffstore"
	"som/report"
)

// renderSummaryText formats a Summary as the human-readable `som
// report` table: a short header followed by aligned count/percentage
// lines and one line per warning.
func renderSummaryText(s *report.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s  generated %s\n", s.RunID, s.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "sources: %s\n", strings.Join(s.SourceFiles, ", "))
	fmt.Fprintf(&b, "binary size: %d bytes   fallback size: %d bytes\n\n", s.BinarySize, s.FallbackSize)

	staticPct, detPct, nondetPct := s.Counts.Percentages()
	fmt.Fprintf(&b, "%-16s %6d  (%5.1f%%)\n", "static", s.Counts.Static, staticPct)
	fmt.Fprintf(&b, "%-16s %6d  (%5.1f%%)\n", "deterministic", s.Counts.Deterministic, detPct)
	fmt.Fprintf(&b, "%-16s %6d  (%5.1f%%)\n", "nondeterministic", s.Counts.Nondeterministic, nondetPct)
	fmt.Fprintf(&b, "%-16s %6d\n", "boundaries", s.BoundaryCount)

	if len(s.DepHistogram) > 0 {
		b.WriteString("\ndependency kinds:\n")
		kinds := make([]string, 0, len(s.DepHistogram))
		for k := range s.DepHistogram {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-16s %d\n", k, s.DepHistogram[k])
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\nwarnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", w.Kind, w.NodeID, w.Message)
		}
	}

	return b.String()
}

// renderDiffText formats a diffstore.Diff for `som diff`'s console
// output.
func renderDiffText(d *diffstore.Diff) string {
	if d.Empty() {
		return "no classification changes\n"
	}

	var b strings.Builder
	for _, sel := range d.Added {
		fmt.Fprintf(&b, "+ %s\n", sel)
	}
	for _, sel := range d.Removed {
		fmt.Fprintf(&b, "- %s\n", sel)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(&b, "~ %s: %s -> %s\n", c.Selector, c.OldClass, c.NewClass)
	}
	return b.String()
}
