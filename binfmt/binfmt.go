// Package binfmt serializes an analyzed rule arena into the binary
// format a runtime loader consumes: a constant pool, a static tier, a
// dynamic index, and a dynamic tier, in that fixed section order.
package binfmt

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"som/pool"
	"som/rules"
)

const (
	fileMagic      = "BSOM"
	fileVersion    = 1
	sectionCount   = 3
	fileHeaderSize = 16
)

// Output is the fully assembled binary artifact plus the pool used to
// build it, so callers (tests, the report package) can resolve refs
// back to strings without re-parsing the bytes.
type Output struct {
	Bytes []byte
	Pool  *pool.Pool
}

// Emit serializes every rule in arena by EmitType into the binary
// format. Rules are expected to already carry FinalClass, EmitType,
// BoundaryID and resolved Deps from the classification, graph-build,
// and contamination passes.
func Emit(arena *rules.Arena) (*Output, error) {
	builder := pool.NewBuilder()
	all := arena.All()

	internRuleStrings(builder, all)

	p, err := builder.Finalize()
	if err != nil {
		return nil, fmt.Errorf("binfmt: finalize pool: %w", err)
	}

	staticSection, err := encodeStaticTier(arena, p)
	if err != nil {
		return nil, fmt.Errorf("binfmt: encode static tier: %w", err)
	}

	dynamicTier, indexEntries, err := encodeDynamicTier(arena, p)
	if err != nil {
		return nil, fmt.Errorf("binfmt: encode dynamic tier: %w", err)
	}
	dynamicIndex := encodeDynamicIndex(indexEntries)

	poolSection := p.Encode()

	total := fileHeaderSize + len(poolSection) + len(staticSection) + len(dynamicIndex) + len(dynamicTier)
	out := make([]byte, 0, total)
	out = append(out, encodeFileHeader()...)
	out = append(out, poolSection...)
	out = append(out, staticSection...)
	out = append(out, dynamicIndex...)
	out = append(out, dynamicTier...)

	return &Output{Bytes: out, Pool: p}, nil
}

func encodeFileHeader() []byte {
	h := make([]byte, fileHeaderSize)
	copy(h[0:4], fileMagic)
	h[4] = fileVersion
	binary.LittleEndian.PutUint32(h[8:12], 0)
	binary.LittleEndian.PutUint32(h[12:16], sectionCount)
	return h
}

// FileHeader is the decoded 16-byte file header.
type FileHeader struct {
	Version      uint8
	Flags        uint32
	SectionCount uint32
}

// DecodeFileHeader validates magic and version and parses the 16-byte
// file header from the front of data.
func DecodeFileHeader(data []byte) (*FileHeader, error) {
	if len(data) < fileHeaderSize {
		return nil, fmt.Errorf("binfmt: truncated file header")
	}
	if string(data[0:4]) != fileMagic {
		return nil, fmt.Errorf("binfmt: bad file magic %q", data[0:4])
	}
	version := data[4]
	if version != fileVersion {
		return nil, fmt.Errorf("binfmt: unsupported file version %d", version)
	}
	return &FileHeader{
		Version:      version,
		Flags:        binary.LittleEndian.Uint32(data[8:12]),
		SectionCount: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// internRuleStrings interns every selector and, for STATIC and
// EmitRuleSet rules, every non-custom property name and value that
// ends up in the static-style property list. A boundary's manifest
// (encodeBoundaryMarker) pulls dep properties from every member of its
// subgraph, not just the boundary rule itself, so every rule's
// non-THEME dep properties are interned here regardless of EmitType.
func internRuleStrings(b *pool.Builder, all []*rules.Rule) {
	for _, r := range all {
		b.Intern(r.Selector)
		switch r.EmitType {
		case rules.EmitStatic, rules.EmitRuleSet:
			for name, value := range visibleProperties(r) {
				b.Intern(name)
				b.Intern(value)
			}
		}
		for _, dep := range r.Deps {
			if dep.Kind == rules.Theme {
				continue
			}
			b.Intern(dep.Property)
		}
	}
}

// visibleProperties returns a rule's declarations with custom
// properties (--name) omitted: the static tier and rule-set records
// never carry custom-property entries.
func visibleProperties(r *rules.Rule) map[string]string {
	out := make(map[string]string, len(r.NormalizedDeclarations))
	for name, value := range r.NormalizedDeclarations {
		if strings.HasPrefix(name, "--") {
			continue
		}
		out[name] = value
	}
	return out
}

// orderByHash sorts rules by ascending selector hash, breaking ties by
// the selector string's own lexicographic order so the ordering stays
// total even across a hash collision.
func orderByHash(rs []*rules.Rule) {
	sort.Slice(rs, func(i, j int) bool {
		hi, hj := rules.HashSelector(rs[i].Selector), rules.HashSelector(rs[j].Selector)
		if hi != hj {
			return hi < hj
		}
		return rs[i].Selector < rs[j].Selector
	})
}

func encodePropertyEntries(props map[string]string, p *pool.Pool) ([]byte, int, error) {
	type entry struct {
		name  string
		value string
	}
	entries := make([]entry, 0, len(props))
	for name, value := range props {
		entries = append(entries, entry{name: name, value: value})
	}
	// Sorting by name lexicographically is equivalent to sorting by
	// name_ref ascending: pool indices are themselves assigned in
	// lexicographic order, so the relative order among any subset of
	// property names matches their relative ref order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	count := len(entries)
	if count > 255 {
		count = 255
		entries = entries[:count]
	}

	buf := make([]byte, 0, count*6)
	for _, e := range entries {
		nameRef := p.Ref(e.name)
		valueRef := p.Ref(e.value)
		rec := make([]byte, 6)
		pool.PutUint24LE(rec[0:3], nameRef)
		pool.PutUint24LE(rec[3:6], valueRef)
		buf = append(buf, rec...)
	}
	return buf, count, nil
}
