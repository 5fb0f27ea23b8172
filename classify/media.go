package classify

import "strings"

// mediaSizeIndicators are substrings in a media condition that imply a
// viewport dependency for every rule nested under it.
var mediaSizeIndicators = []string{
	"width", "height", "aspect-ratio", "orientation", "resolution",
}

// mediaPrefIndicators are substrings that imply a user-preference
// dependency keyed by the condition's own text, since distinct
// preference queries invalidate independently of one another.
var mediaPrefIndicators = []string{
	"prefers-", "forced-colors", "inverted-colors",
}

// MediaDependencyKinds reports which synthetic dependency kinds a
// rule's media_query condition implies. Synthesis happens once per
// distinct condition string, after classification proper, because a
// media condition is a property of the rule as a whole rather than of
// any one declaration.
func MediaDependencyKinds(mediaQuery string) (viewport, userPref bool) {
	if mediaQuery == "" {
		return false, false
	}
	lower := strings.ToLower(mediaQuery)
	for _, ind := range mediaSizeIndicators {
		if strings.Contains(lower, ind) {
			viewport = true
			break
		}
	}
	for _, ind := range mediaPrefIndicators {
		if strings.Contains(lower, ind) {
			userPref = true
			break
		}
	}
	return viewport, userPref
}
