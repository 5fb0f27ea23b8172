package config

import (
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// OutputMode selects which artifact a run renders: the human-readable
// Summary Record (report), its JSON form, the compiled binary, or a
// diff against a previously stored snapshot.
//
// Hand-written rather than go-enum generated: nothing in this tree
// runs go generate, so a generated _enum.go file would be
// unreproducible here. The shape (String/Parse/(Un)MarshalYAML)
// follows what such generated code exposes.
type OutputMode int

const (
	OutputReport OutputMode = iota
	OutputJSON
	OutputBinary
	OutputDiff
)

func (m OutputMode) String() string {
	switch m {
	case OutputReport:
		return "report"
	case OutputJSON:
		return "json"
	case OutputBinary:
		return "binary"
	case OutputDiff:
		return "diff"
	default:
		return "unknown"
	}
}

// ParseOutputMode parses the textual form used in config files and on
// the command line.
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "report":
		return OutputReport, nil
	case "json":
		return OutputJSON, nil
	case "binary":
		return OutputBinary, nil
	case "diff":
		return OutputDiff, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q", s)
	}
}

func (m OutputMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *OutputMode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseOutputMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
