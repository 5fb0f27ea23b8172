// Package report builds the Summary Record emitted alongside a
// compiled binary: generation metadata, size and rule-count
// breakdowns, warnings, and per-dependency-kind histograms.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"

	"som/rules"
)

// ClassCounts tallies rules by final classification.
type ClassCounts struct {
	Static           int `json:"static"`
	Deterministic    int `json:"deterministic"`
	Nondeterministic int `json:"nondeterministic"`
}

// Total returns the sum of all three tiers.
func (c ClassCounts) Total() int {
	return c.Static + c.Deterministic + c.Nondeterministic
}

// Percentages returns each tier's share of Total, rounded to the
// nearest whole percent. Rounding can make the three values sum to
// slightly under or over 100; callers only need the sum to reach at
// least 99.
func (c ClassCounts) Percentages() (static, deterministic, nondeterministic float64) {
	total := c.Total()
	if total == 0 {
		return 0, 0, 0
	}
	pct := func(n int) float64 {
		return math.Round(float64(n) * 100.0 / float64(total))
	}
	return pct(c.Static), pct(c.Deterministic), pct(c.Nondeterministic)
}

// TypedWarning mirrors rules.Warning in a JSON-stable shape: exported
// fields with explicit tags, so the wire format doesn't drift if the
// internal Warning struct's field order changes.
type TypedWarning struct {
	Kind            string `json:"kind"`
	NodeID          string `json:"node_id"`
	Message         string `json:"message,omitempty"`
	TokenName       string `json:"token_name,omitempty"`
	ReferencedToken string `json:"referenced_token,omitempty"`
	Property        string `json:"property,omitempty"`
}

func newTypedWarning(w rules.Warning) TypedWarning {
	return TypedWarning{
		Kind:            w.Kind.String(),
		NodeID:          w.NodeID,
		Message:         w.Message,
		TokenName:       w.TokenName,
		ReferencedToken: w.ReferencedToken,
		Property:        w.Property,
	}
}

// Summary is the Summary Record emitted alongside a compiled binary.
type Summary struct {
	RunID               string         `json:"run_id"`
	GeneratedAt         time.Time      `json:"generated_at"`
	SourceFiles         []string       `json:"source_files"`
	BinarySize          int            `json:"binary_size"`
	FallbackSize        int            `json:"fallback_size"`
	Counts              ClassCounts    `json:"counts"`
	StaticPct           float64        `json:"static_pct"`
	DeterministicPct    float64        `json:"deterministic_pct"`
	NondeterministicPct float64        `json:"nondeterministic_pct"`
	Warnings            []TypedWarning `json:"warnings"`
	BoundaryCount       int            `json:"boundary_count"`
	DepHistogram        map[string]int `json:"dependency_histogram"`
}

// Build assembles a Summary from an analyzed arena, the full flat
// warning list the analysis pass produced, and the sizes of the two
// emitted artifacts. The warning list is accepted explicitly rather
// than re-derived from each rule's own Warnings field, since some
// warnings (token-table-level UNDEFINED_TOKEN/TOKEN_CYCLE findings)
// describe a custom property's own definition, not any one consuming
// rule, and have no NodeID to attach to. sourceFiles is sorted with
// natural ordering (so "file2.css" sorts before "file10.css") before
// recording.
func Build(all []*rules.Rule, warnings []rules.Warning, sourceFiles []string, binarySize, fallbackSize int) *Summary {
	files := append([]string{}, sourceFiles...)
	sort.Sort(natural.StringSlice(files))

	var counts ClassCounts
	typedWarnings := make([]TypedWarning, 0, len(warnings))
	for _, w := range warnings {
		typedWarnings = append(typedWarnings, newTypedWarning(w))
	}
	boundaries := make(map[string]struct{})
	histogram := make(map[string]int)

	for _, r := range all {
		switch r.FinalClass {
		case rules.Static:
			counts.Static++
		case rules.Deterministic:
			counts.Deterministic++
		case rules.Nondeterministic:
			counts.Nondeterministic++
		}
		if r.EmitType == rules.EmitBoundary {
			boundaries[r.ID] = struct{}{}
		}
		for _, dep := range r.Deps {
			histogram[dep.Kind.String()]++
		}
	}

	s := &Summary{
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		SourceFiles:   files,
		BinarySize:    binarySize,
		FallbackSize:  fallbackSize,
		Counts:        counts,
		Warnings:      typedWarnings,
		BoundaryCount: len(boundaries),
		DepHistogram:  histogram,
	}
	s.StaticPct, s.DeterministicPct, s.NondeterministicPct = counts.Percentages()
	return s
}
