package main

import (
	"encoding/json"

	"github.com/h2non/filetype"
)

// bsomType registers the compiled-binary magic ("BSOM", see
// binfmt.Emit's file header) as a filetype.Is-recognizable type, so a
// positional command-line argument can be routed without relying on
// its file extension.
var bsomType = filetype.NewType("bsom", "application/vnd.som.binary")

func init() {
	filetype.AddMatcher(bsomType, func(buf []byte) bool {
		return len(buf) >= 4 && string(buf[:4]) == "BSOM"
	})
}

// inputKind classifies one positional argument's content as a
// compiled binary, a JSON token table, or raw stylesheet source.
type inputKind int

const (
	kindStylesheet inputKind = iota
	kindBinary
	kindTokenTable
)

// classifyInput sniffs data to decide how a positional source
// argument should be routed. JSON detection falls back to
// encoding/json.Valid: filetype's matchers target binary magic
// numbers, and a custom-property token table has none.
func classifyInput(data []byte) inputKind {
	if filetype.Is(data, "bsom") {
		return kindBinary
	}
	if json.Valid(data) {
		return kindTokenTable
	}
	return kindStylesheet
}
