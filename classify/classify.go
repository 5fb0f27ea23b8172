// Package classify implements the value classifier: given one
// declaration's raw value, it detects which environmental inputs the
// value depends on and normalizes it to a canonical form.
package classify

import (
	"strings"

	"som/rules"
	"som/selectors"
)

// Result is everything ClassifyDeclaration derives from one
// declaration.
type Result struct {
	Classification    rules.Classification
	Deps              []rules.Dependency
	NormalizedValue   string
	Warnings          []rules.Warning
	PortalTarget      string // non-empty when this declares a portal destination
	ContainerBoundary bool   // true when this declares container-type: inline-size|size
}

// ClassifyDeclaration classifies one (property, raw_value) pair
// belonging to ownerID.
func ClassifyDeclaration(ownerID, property, rawValue string) Result {
	var res Result

	switch strings.ToLower(property) {
	case "portal_id", "portal-id":
		res.PortalTarget = strings.TrimSpace(rawValue)
	case "container-type":
		lower := strings.ToLower(rawValue)
		res.ContainerBoundary = strings.Contains(lower, "inline-size") || strings.Contains(lower, "size")
	}

	if isVendorPrefixed(property) {
		res.NormalizedValue = selectors.NormalizeWhitespace(rawValue)
		res.Classification = rules.Static
		return res
	}

	if normalized, ok := normalizeColor(rawValue); ok {
		res.NormalizedValue = normalized
		res.Classification = rules.Static
		return res
	}

	res.NormalizedValue = selectors.NormalizeWhitespace(rawValue)

	var hasAbsoluteLength, hasRuntimeOperand, inMathFunction bool
	for _, tok := range scanValueTokens(rawValue) {
		switch tok.kind {
		case tokenFunction:
			name := strings.ToLower(tok.text)
			if mathFunctions[name] {
				inMathFunction = true
			}
			switch name {
			case "env":
				res.Deps = append(res.Deps, newDep(ownerID, property, rules.Env, name+"(...)"))
				hasRuntimeOperand = true
			case "var":
				res.Deps = append(res.Deps, newDep(ownerID, property, rules.Theme, name+"(...)"))
				hasRuntimeOperand = true
			}
		case tokenUnit:
			kind, ok := unitDependencyKind(tok.text)
			if !ok {
				continue
			}
			if kind == rules.ParentSize && tok.insideOpaqueColorFunc {
				continue
			}
			res.Deps = append(res.Deps, newDep(ownerID, property, kind, tok.text))
			hasRuntimeOperand = true
		case tokenAbsoluteLength:
			hasAbsoluteLength = true
		case tokenKeyword:
			if intrinsicSizeKeywords[strings.ToLower(tok.text)] {
				res.Deps = append(res.Deps, newDep(ownerID, property, rules.IntrinsicSize, tok.text))
				hasRuntimeOperand = true
			}
		}
	}

	if inMathFunction && hasAbsoluteLength && hasRuntimeOperand {
		res.Warnings = append(res.Warnings, rules.Warning{
			Kind:     rules.MixedOperands,
			NodeID:   ownerID,
			Property: property,
			Message:  "calc/min/max/clamp mixes an absolute length with a runtime operand",
		})
	}

	res.Deps = rules.DedupDeps(res.Deps)
	if hasNonThemeDep(res.Deps) {
		res.Classification = rules.Deterministic
	} else {
		res.Classification = rules.Static
	}
	return res
}

// hasNonThemeDep reports whether deps contains anything other than a
// THEME dependency. A bare var() reference always attaches a THEME
// dep so the manifest machinery can see it, but THEME alone never
// elevates a value's own classification: whether the reference turns
// out to be runtime-dependent is decided once the token it points to
// is actually resolved, not at the point where var() is merely used.
func hasNonThemeDep(deps []rules.Dependency) bool {
	for _, d := range deps {
		if d.Kind != rules.Theme {
			return true
		}
	}
	return false
}

// DependencyKindsInText reports the dependency kinds a plain value
// text contributes by unit/keyword alone, ignoring var()/env() and the
// mixed-operand rule. It lets a resolved custom-property's leaf text
// be scanned for the same unit vocabulary ClassifyDeclaration uses,
// without re-deriving portal/container/color signals that only apply
// to a whole declaration.
func DependencyKindsInText(value string) []rules.DependencyKind {
	var kinds []rules.DependencyKind
	seen := make(map[rules.DependencyKind]bool)
	add := func(k rules.DependencyKind) {
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	for _, tok := range scanValueTokens(value) {
		switch tok.kind {
		case tokenUnit:
			if kind, ok := unitDependencyKind(tok.text); ok {
				if kind == rules.ParentSize && tok.insideOpaqueColorFunc {
					continue
				}
				add(kind)
			}
		case tokenKeyword:
			if intrinsicSizeKeywords[strings.ToLower(tok.text)] {
				add(rules.IntrinsicSize)
			}
		}
	}
	return kinds
}

func newDep(ownerID, property string, kind rules.DependencyKind, expr string) rules.Dependency {
	return rules.Dependency{
		OwnerID:          ownerID,
		Property:         property,
		Kind:             kind,
		InvalidationMask: rules.InvalidationMask(kind, property),
		Expression:       expr,
	}
}

// ClassifySelectorStructure reports the STRUCTURE dependency and
// STRUCTURAL_DYNAMIC warning a selector's structural pseudo-classes
// force, if any. This forces a rule's local class to NONDETERMINISTIC
// regardless of what its declarations alone would classify to.
func ClassifySelectorStructure(ownerID, selector string) (rules.Dependency, rules.Warning, bool) {
	if !selectors.ContainsStructuralPseudo(selector) {
		return rules.Dependency{}, rules.Warning{}, false
	}
	dep := newDep(ownerID, "__selector__", rules.Structure, selector)
	warn := rules.Warning{
		Kind:     rules.StructuralDynamic,
		NodeID:   ownerID,
		Property: "__selector__",
		Message:  "selector depends on sibling position or emptiness",
	}
	return dep, warn, true
}
