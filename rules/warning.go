package rules

// WarningKind is the closed taxonomy of diagnostics the analyzer can
// attach to a rule. Message text is informational only — every
// machine-consumable fact lives in the other Warning fields.
//
// ENUM(structural_dynamic, missing_container, portal_missing, unresolved_token, undefined_token, mixed_operands, token_cycle, dep_warning)
type WarningKind int

const (
	StructuralDynamic WarningKind = iota
	MissingContainer
	PortalMissing
	UnresolvedToken
	UndefinedToken
	MixedOperands
	TokenCycle
	DepWarning
)

var _WarningKindNames = [...]string{
	"structural_dynamic", "missing_container", "portal_missing",
	"unresolved_token", "undefined_token", "mixed_operands",
	"token_cycle", "dep_warning",
}

func (k WarningKind) String() string {
	if k < 0 || int(k) >= len(_WarningKindNames) {
		return "unknown"
	}
	return _WarningKindNames[k]
}

// Warning is a single diagnostic attached to a rule during analysis.
type Warning struct {
	Kind            WarningKind
	NodeID          string
	Message         string
	TokenName       string
	ReferencedToken string
	Property        string
}

// unresolvedTokenKey identifies an UNRESOLVED_TOKEN warning for the once-per-pair
// dedup rule: keyed by (token_name, referenced_token).
func (w Warning) unresolvedTokenKey() [2]string {
	return [2]string{w.TokenName, w.ReferencedToken}
}

// DedupUnresolvedTokenWarnings drops repeat UNRESOLVED_TOKEN warnings
// that share (token_name, referenced_token), keeping the first
// occurrence. Every other warning kind passes through unchanged.
func DedupUnresolvedTokenWarnings(warnings []Warning) []Warning {
	seen := make(map[[2]string]struct{})
	out := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		if w.Kind == UnresolvedToken {
			k := w.unresolvedTokenKey()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, w)
	}
	return out
}
