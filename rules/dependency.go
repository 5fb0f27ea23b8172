package rules

import (
	"hash/fnv"
	"sort"
)

// DependencyKind enumerates the environmental inputs a rule's value can
// depend on.
//
// ENUM(parent_size, viewport, font_metrics, env, theme, container_size, user_pref, intrinsic_size, structure)
type DependencyKind int

const (
	ParentSize DependencyKind = iota
	Viewport
	FontMetrics
	Env
	Theme
	ContainerSize
	UserPref
	IntrinsicSize
	Structure
)

var _DependencyKindNames = [...]string{
	"parent_size", "viewport", "font_metrics", "env", "theme",
	"container_size", "user_pref", "intrinsic_size", "structure",
}

func (k DependencyKind) String() string {
	if k < 0 || int(k) >= len(_DependencyKindNames) {
		return "unknown"
	}
	return _DependencyKindNames[k]
}

// structureBit is the invalidation-mask bit permanently reserved for
// DependencyKind Structure. Every other property hashes into one of
// the low 31 bits instead.
const structureBit = 31

// InvalidationMask derives the 32-bit invalidation-mask bit position for
// a dependency on the given property. STRUCTURE always claims bit 31;
// every other property hashes into one of the low 31 bits so that
// distinct properties usually (not guaranteed) claim distinct bits.
func InvalidationMask(kind DependencyKind, property string) uint32 {
	if kind == Structure {
		return 1 << structureBit
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(property))
	bit := h.Sum32() % structureBit
	return 1 << bit
}

// Dependency is a typed edge from a rule to an environmental input whose
// change requires recomputation of that rule's value.
type Dependency struct {
	OwnerID          string
	Property         string
	Kind             DependencyKind
	InvalidationMask uint32
	Expression       string
	ContainerID      string // empty means no resolution container
}

// dedupKey identifies a Dependency within a single rule's own dep list,
// by (property, kind, container, expression). A separate key,
// manifestDedupKey, identifies a dependency across a boundary's whole
// subgraph by (owner_id, property, kind, container_id) instead.
type dedupKey struct {
	property    string
	kind        DependencyKind
	container   string
	expression  string
}

func (d Dependency) ruleDedupKey() dedupKey {
	return dedupKey{property: d.Property, kind: d.Kind, container: d.ContainerID, expression: d.Expression}
}

type manifestDedupKey struct {
	owner     string
	property  string
	kind      DependencyKind
	container string
}

func (d Dependency) manifestDedupKey() manifestDedupKey {
	return manifestDedupKey{owner: d.OwnerID, property: d.Property, kind: d.Kind, container: d.ContainerID}
}

// DedupDeps removes duplicate dependencies within a single rule's own
// list, by (property, kind, container, expression), preserving the order
// of first occurrence.
func DedupDeps(deps []Dependency) []Dependency {
	seen := make(map[dedupKey]struct{}, len(deps))
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		k := d.ruleDedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

// SortDeps orders deps by (property, kind, container_id, expression),
// the canonical key also used for dedup. Declarations fold out of a
// map, so without this the same rule's deps serialize in a different
// byte order from one run to the next.
func SortDeps(deps []Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ContainerID != b.ContainerID {
			return a.ContainerID < b.ContainerID
		}
		return a.Expression < b.Expression
	})
}
