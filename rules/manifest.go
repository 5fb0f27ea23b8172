package rules

// ManifestFlags are bit flags attached to a DependencyManifest, carried
// straight through into the binary format's manifest flag byte.
type ManifestFlags uint8

const (
	// FlagPortalDependency is set when any member of the boundary's
	// subgraph declares a portal target.
	FlagPortalDependency ManifestFlags = 1 << 0
	// FlagContaminationOnly is set when the assembled Deps list ends up
	// empty: the boundary exists (some rule in its subgraph is dynamic)
	// but no dependency survived dedup and THEME-exclusion to explain
	// why.
	FlagContaminationOnly ManifestFlags = 1 << 1
)

// BoundaryManifest is the deduplicated set of dependencies for every
// DETERMINISTIC member of one boundary's subgraph, plus the flags
// summarizing why the boundary exists.
type BoundaryManifest struct {
	BoundaryID string
	Deps       []Dependency
	Flags      ManifestFlags
}

// AddDep appends dep to the manifest, deduplicating by
// (owner_id, property, kind, container_id) when merging dependencies
// collected across every member of a boundary's subgraph. THEME
// dependencies are excluded entirely: the loader
// handles theme switches out of band and they never need invalidation
// bookkeeping.
func (m *BoundaryManifest) AddDep(dep Dependency) {
	if dep.Kind == Theme {
		return
	}
	key := dep.manifestDedupKey()
	for _, existing := range m.Deps {
		if existing.manifestDedupKey() == key {
			return
		}
	}
	m.Deps = append(m.Deps, dep)
}

// InvalidationMask ORs together every dependency's invalidation mask,
// producing the 32-bit value the loader compares against a change
// notification to decide whether this boundary needs reevaluation.
func (m *BoundaryManifest) InvalidationMask() uint32 {
	var mask uint32
	for _, d := range m.Deps {
		mask |= d.InvalidationMask
	}
	return mask
}
