// Package tokens resolves custom-property (--name) indirection chains
// recorded by the css parser's raw token table into their ultimate
// absolute values, and walks var(--name, fallback) references inside a
// single declaration's value against that resolved table.
package tokens

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"som/classify"
	"som/rules"
	"som/selectors"
)

// Record is one custom property's flattened resolution.
type Record struct {
	Raw       string
	Resolved  string
	PointerTo string // "" means this is an absolute leaf
}

// Table is the flattened view of every custom property declared
// anywhere in a stylesheet (or merged in from an external source).
type Table map[string]Record

// Merge combines an externally supplied raw token table with the
// stylesheet's own raw token table. Source-declared tokens always win
// on a name collision: the closer binding takes precedence, same rule
// the parser applies to repeated declarations of the same property.
func Merge(external, source map[string]string) map[string]string {
	merged := make(map[string]string, len(external)+len(source))
	for k, v := range external {
		merged[k] = v
	}
	for k, v := range source {
		merged[k] = v
	}
	return merged
}

// Flatten resolves every entry in raw to its ultimate absolute value,
// following var(--name[, fallback]) indirections until an absolute
// leaf, a cycle, or an undefined name is reached.
func Flatten(raw map[string]string) (Table, []rules.Warning) {
	table := make(Table, len(raw))
	var warnings []rules.Warning
	for _, name := range sortedKeys(raw) {
		resolved, pointerTo, w := resolveChain(name, raw, map[string]bool{})
		warnings = append(warnings, w...)
		table[name] = Record{Raw: raw[name], Resolved: resolved, PointerTo: pointerTo}
	}
	return table, rules.DedupUnresolvedTokenWarnings(warnings)
}

func resolveChain(name string, raw map[string]string, visiting map[string]bool) (resolved, pointerTo string, warnings []rules.Warning) {
	value, ok := raw[name]
	if !ok {
		return "", "", []rules.Warning{{
			Kind:      rules.UndefinedToken,
			TokenName: name,
			Message:   "custom property is never defined",
		}}
	}
	if visiting[name] {
		return value, "", []rules.Warning{{
			Kind:      rules.TokenCycle,
			TokenName: name,
			Message:   "custom property chain cycles back to itself",
		}}
	}

	ref, isIndirection := parseSoleVarRef(value)
	if !isIndirection {
		return value, "", nil
	}

	visiting[name] = true
	next, pointer, w := resolveChain(ref.Name, raw, visiting)
	if len(w) > 0 {
		if ref.HasFallback {
			warn := rules.Warning{
				Kind:            rules.UnresolvedToken,
				TokenName:       name,
				ReferencedToken: ref.Name,
				Message:         "falling back: referenced custom property did not resolve",
			}
			return ref.Fallback, "", append(w, warn)
		}
		return value, "", w
	}
	if pointer != "" {
		return next, pointer, nil
	}
	return next, ref.Name, nil
}

// VarRef is one var(--name[, fallback]) occurrence.
type VarRef struct {
	Name        string
	Fallback    string
	HasFallback bool
}

// parseSoleVarRef reports whether value, trimmed, is exactly one
// var(...) call with nothing else around it — the shape that makes a
// custom property a pure indirection rather than a computed leaf.
func parseSoleVarRef(value string) (VarRef, bool) {
	trimmed := strings.TrimSpace(value)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "var(") || !strings.HasSuffix(trimmed, ")") {
		return VarRef{}, false
	}
	inner := trimmed[4 : len(trimmed)-1]
	parts := selectors.SplitTopLevel(inner, ",")
	ref := VarRef{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		ref.HasFallback = true
		ref.Fallback = strings.TrimSpace(strings.Join(parts[1:], ","))
	}
	return ref, true
}

// findVarRefs returns every var(--name[, fallback]) call appearing
// anywhere in value, in left-to-right order, including ones nested
// inside other functions (calc(var(--x) + 1px) still counts).
func findVarRefs(value string) []VarRef {
	var refs []VarRef
	lower := strings.ToLower(value)
	for i := 0; i+4 <= len(value); i++ {
		if lower[i:i+4] != "var(" {
			continue
		}
		depth := 1
		j := i + 4
		for j < len(value) && depth > 0 {
			switch value[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			j++
		}
		if depth != 0 {
			break // unterminated var(...), nothing more to find
		}
		inner := value[i+4 : j-1]
		parts := selectors.SplitTopLevel(inner, ",")
		ref := VarRef{Name: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			ref.HasFallback = true
			ref.Fallback = strings.TrimSpace(strings.Join(parts[1:], ","))
		}
		refs = append(refs, ref)
		i = j - 1
	}
	return refs
}

// ResolveDeclaration walks every var(--name, fallback) reference in
// value against table, returning the extra dependencies a direct
// per-value classification would miss (the referenced token's own
// unit/keyword vocabulary) plus the warnings the chain resolution
// produces for this one consumer.
func ResolveDeclaration(ownerID, property, value string, table Table) (extraDeps []rules.Dependency, warnings []rules.Warning) {
	for _, ref := range findVarRefs(value) {
		rec, ok := table[ref.Name]
		if !ok {
			if ref.HasFallback {
				warnings = append(warnings, rules.Warning{
					Kind:            rules.UnresolvedToken,
					NodeID:          ownerID,
					Property:        property,
					TokenName:       ref.Name,
					ReferencedToken: ref.Name,
					Message:         "custom property undefined, using declared fallback",
				})
				extraDeps = append(extraDeps, dependenciesFromText(ownerID, property, "var("+ref.Name+")", ref.Fallback)...)
				continue
			}
			warnings = append(warnings, rules.Warning{
				Kind:      rules.UndefinedToken,
				NodeID:    ownerID,
				Property:  property,
				TokenName: ref.Name,
				Message:   "custom property is never defined",
			})
			continue
		}
		extraDeps = append(extraDeps, dependenciesFromText(ownerID, property, "var("+ref.Name+")", rec.Resolved)...)
	}
	return extraDeps, rules.DedupUnresolvedTokenWarnings(warnings)
}

func dependenciesFromText(ownerID, property, expression, text string) []rules.Dependency {
	var deps []rules.Dependency
	for _, kind := range classify.DependencyKindsInText(text) {
		deps = append(deps, rules.Dependency{
			OwnerID:          ownerID,
			Property:         property,
			Kind:             kind,
			InvalidationMask: rules.InvalidationMask(kind, property),
			Expression:       expression,
		})
	}
	return deps
}

// LoadExternal reads an external custom-property table from a YAML
// file of `name: value` pairs (names without the leading "--" are
// accepted and normalized).
func LoadExternal(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		out[name] = value
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
