package classify

import (
	"strings"

	"som/rules"
)

// unitKind maps a CSS unit suffix to the dependency kind it implies.
// Longer suffixes are checked before shorter ones that could otherwise
// match as a prefix (e.g. "rem" before "em").
var unitKind = []struct {
	suffix string
	kind   rules.DependencyKind
}{
	{"%", rules.ParentSize},

	{"cqmin", rules.ContainerSize},
	{"cqmax", rules.ContainerSize},
	{"cqw", rules.ContainerSize},
	{"cqh", rules.ContainerSize},
	{"cqi", rules.ContainerSize},
	{"cqb", rules.ContainerSize},

	{"svw", rules.Viewport},
	{"svh", rules.Viewport},
	{"svi", rules.Viewport},
	{"svb", rules.Viewport},
	{"lvw", rules.Viewport},
	{"lvh", rules.Viewport},
	{"lvi", rules.Viewport},
	{"lvb", rules.Viewport},
	{"dvw", rules.Viewport},
	{"dvh", rules.Viewport},
	{"dvi", rules.Viewport},
	{"dvb", rules.Viewport},
	{"vmin", rules.Viewport},
	{"vmax", rules.Viewport},
	{"vw", rules.Viewport},
	{"vh", rules.Viewport},
	{"vi", rules.Viewport},
	{"vb", rules.Viewport},

	{"rem", rules.FontMetrics},
	{"rex", rules.FontMetrics},
	{"rch", rules.FontMetrics},
	{"rcap", rules.FontMetrics},
	{"ric", rules.FontMetrics},
	{"rlh", rules.FontMetrics},
	{"em", rules.FontMetrics},
	{"ex", rules.FontMetrics},
	{"ch", rules.FontMetrics},
	{"cap", rules.FontMetrics},
	{"ic", rules.FontMetrics},
	{"lh", rules.FontMetrics},
}

// unitDependencyKind returns the dependency kind implied by a trailing
// numeric unit in token, and ok=false when token carries no recognized
// unit (a bare number, or a unit this table doesn't know).
func unitDependencyKind(token string) (rules.DependencyKind, bool) {
	lower := strings.ToLower(strings.TrimSpace(token))
	for _, u := range unitKind {
		if strings.HasSuffix(lower, u.suffix) && hasNumericPrefix(lower[:len(lower)-len(u.suffix)]) {
			return u.kind, true
		}
	}
	return 0, false
}

func hasNumericPrefix(s string) bool {
	if s == "" {
		return false
	}
	seenDigit := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' || r == '-' || r == '+':
			// allowed anywhere a sign/decimal point can appear
		default:
			return false
		}
		_ = i
	}
	return seenDigit
}

// intrinsicSizeKeywords are the CSS sizing keywords whose resolution
// depends on the box's own content.
var intrinsicSizeKeywords = map[string]bool{
	"min-content": true,
	"max-content": true,
	"fit-content": true,
	"stretch":     true,
}

// isVendorPrefixed reports whether property carries one of the vendor
// prefixes that make a value an opaque string for dependency purposes.
func isVendorPrefixed(property string) bool {
	lower := strings.ToLower(property)
	return strings.HasPrefix(lower, "-webkit-") || strings.HasPrefix(lower, "-moz-") || strings.HasPrefix(lower, "-ms-")
}

// opaqueColorFunctions suppress any dependency their percentage
// arguments would otherwise contribute — those percentages are color
// channels, not size percentages. Fixed list; extending it is a
// binary-format-version concern, not a runtime one.
var opaqueColorFunctions = []string{
	"rgb", "rgba", "hsl", "hsla", "hwb", "lab", "lch", "oklch", "oklab",
	"color", "color-mix", "light-dark",
}

func isOpaqueColorFunction(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range opaqueColorFunctions {
		if f == lower {
			return true
		}
	}
	return false
}

// mathFunctions is the set of functions subject to the mixed-operand
// rule: when both absolute and runtime operands are present, the
// runtime kind dominates and a MIXED_OPERANDS warning is emitted.
var mathFunctions = map[string]bool{
	"calc": true, "min": true, "max": true, "clamp": true,
}
