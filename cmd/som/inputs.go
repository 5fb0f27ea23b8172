package main

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"som/analysis"
)

// gatherInputs reads every path, classifies its content, and splits
// the result into stylesheet sources and any JSON token tables found
// among the positional arguments (a convenience for invocations that
// pass an external token file as a bare positional instead of
// --tokens). A .bsom binary among the positionals is reported as a
// per-file error rather than silently skipped: every readable file is
// attempted before any error is returned, aggregating per-file
// failures with multierr the way a multi-file conversion run would.
func gatherInputs(paths []string) (sources []analysis.Source, tokenTables []map[string]string, err error) {
	for _, path := range paths {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			err = multierr.Append(err, fmt.Errorf("read %q: %w", path, readErr))
			continue
		}

		switch classifyInput(data) {
		case kindBinary:
			err = multierr.Append(err, fmt.Errorf("%q is a compiled binary, not a stylesheet source", path))
		case kindTokenTable:
			var table map[string]string
			if jsonErr := json.Unmarshal(data, &table); jsonErr != nil {
				err = multierr.Append(err, fmt.Errorf("%q looks like a token table but failed to decode: %w", path, jsonErr))
				continue
			}
			tokenTables = append(tokenTables, table)
		default:
			sources = append(sources, analysis.Source{Name: path, Data: data})
		}
	}
	return sources, tokenTables, err
}

func mergeTokenTables(tables []map[string]string) map[string]string {
	if len(tables) == 0 {
		return nil
	}
	merged := make(map[string]string)
	for _, t := range tables {
		for k, v := range t {
			merged[k] = v
		}
	}
	return merged
}
