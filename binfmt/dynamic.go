package binfmt

import (
	"encoding/binary"
	"fmt"

	"som/contam"
	"som/pool"
	"som/rules"
)

const (
	recordBoundaryMarker   byte = 0x01
	recordRuleSet          byte = 0x02
	recordNondeterministic byte = 0x03

	flagPortalDep byte = 1 << 0
	flagThemeDep  byte = 1 << 1

	dynamicIndexMagic      = "SOMD"
	dynamicIndexHeaderSize = 12
	dynamicIndexEntrySize  = 11
)

// DynamicIndexEntry is one dynamic-index row: only BOUNDARY_MARKER and
// NONDETERMINISTIC records get one.
type DynamicIndexEntry struct {
	Hash        uint32
	SelectorRef uint32
	Offset      uint32 // measured from the start of the dynamic tier
}

// encodeDynamicTier writes every EmitBoundary and EmitNondeterministic
// rule, ordered by ascending selector hash. A boundary's RULE_SET
// subgraph members are written immediately after their marker, in
// source order, so a loader that has just parsed a marker can recover
// them by reading forward without a second index: they are never
// looked up through the dynamic index on their own, only reached via
// their boundary's subgraph hash list.
func encodeDynamicTier(arena *rules.Arena, p *pool.Pool) ([]byte, []DynamicIndexEntry, error) {
	var topLevel []*rules.Rule
	for _, r := range arena.All() {
		if r.EmitType == rules.EmitBoundary || r.EmitType == rules.EmitNondeterministic {
			topLevel = append(topLevel, r)
		}
	}
	orderByHash(topLevel)

	var tier []byte
	var entries []DynamicIndexEntry

	for _, r := range topLevel {
		offset := uint32(len(tier))
		var rec []byte
		var err error
		switch r.EmitType {
		case rules.EmitBoundary:
			rec, err = encodeBoundaryMarker(arena, r, p)
		case rules.EmitNondeterministic:
			rec = encodeNondeterministic(r, p)
		}
		if err != nil {
			return nil, nil, err
		}
		tier = append(tier, rec...)
		entries = append(entries, DynamicIndexEntry{
			Hash:        rules.HashSelector(r.Selector),
			SelectorRef: p.Ref(r.Selector),
			Offset:      offset,
		})
	}

	return tier, entries, nil
}

func encodeBoundaryMarker(arena *rules.Arena, r *rules.Rule, p *pool.Pool) ([]byte, error) {
	members := contam.CollectSubgraph(arena, r.ID)
	manifest := contam.BuildManifest(arena, r.ID)

	var flags byte
	if manifest.Flags&rules.FlagPortalDependency != 0 {
		flags |= flagPortalDep
	}
	for _, m := range members {
		for _, dep := range m.Deps {
			if dep.Kind == rules.Theme {
				flags |= flagThemeDep
			}
		}
	}

	depCount := len(manifest.Deps)
	if depCount > 255 {
		depCount = 255
	}

	header := make([]byte, 1+4+3+1+1+2)
	header[0] = recordBoundaryMarker
	binary.LittleEndian.PutUint32(header[1:5], rules.HashSelector(r.Selector))
	pool.PutUint24LE(header[5:8], p.Ref(r.Selector))
	header[8] = byte(depCount)
	header[9] = flags
	binary.LittleEndian.PutUint16(header[10:12], uint16(len(members)))

	var deps []byte
	for _, dep := range manifest.Deps[:depCount] {
		entry := make([]byte, 1+3+4)
		entry[0] = byte(dep.Kind)
		pool.PutUint24LE(entry[1:4], p.Ref(dep.Property))
		var containerHash uint32
		if dep.ContainerID != "" {
			if container := arena.Lookup(dep.ContainerID); container != nil {
				containerHash = rules.HashSelector(container.Selector)
			}
		}
		binary.LittleEndian.PutUint32(entry[4:8], containerHash)
		deps = append(deps, entry...)
	}

	var hashes []byte
	for _, m := range members {
		h := make([]byte, 4)
		binary.LittleEndian.PutUint32(h, rules.HashSelector(m.Selector))
		hashes = append(hashes, h...)
	}

	rec := append(header, deps...)
	rec = append(rec, hashes...)

	for _, m := range members {
		if m.ID == r.ID {
			continue
		}
		ruleSet, err := encodeRuleSet(m, r, p)
		if err != nil {
			return nil, err
		}
		rec = append(rec, ruleSet...)
	}

	return rec, nil
}

func encodeRuleSet(r *rules.Rule, boundary *rules.Rule, p *pool.Pool) ([]byte, error) {
	propBytes, count, err := encodePropertyEntries(visibleProperties(r), p)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 1+4+3+1+4)
	header[0] = recordRuleSet
	binary.LittleEndian.PutUint32(header[1:5], rules.HashSelector(r.Selector))
	pool.PutUint24LE(header[5:8], p.Ref(r.Selector))
	header[8] = byte(count)
	binary.LittleEndian.PutUint32(header[9:13], rules.HashSelector(boundary.Selector))

	return append(header, propBytes...), nil
}

func encodeNondeterministic(r *rules.Rule, p *pool.Pool) []byte {
	rec := make([]byte, 9)
	rec[0] = recordNondeterministic
	binary.LittleEndian.PutUint32(rec[1:5], rules.HashSelector(r.Selector))
	pool.PutUint24LE(rec[5:8], p.Ref(r.Selector))
	rec[8] = 0
	return rec
}

func encodeDynamicIndex(entries []DynamicIndexEntry) []byte {
	var body []byte
	for _, e := range entries {
		row := make([]byte, dynamicIndexEntrySize)
		binary.LittleEndian.PutUint32(row[0:4], e.Hash)
		pool.PutUint24LE(row[4:7], e.SelectorRef)
		binary.LittleEndian.PutUint32(row[7:11], e.Offset)
		body = append(body, row...)
	}

	header := make([]byte, dynamicIndexHeaderSize)
	copy(header[0:4], dynamicIndexMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(entries)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(body)))

	return append(header, body...)
}

// BoundaryMarkerRecord is one decoded BOUNDARY_MARKER, plus the
// RULE_SET records physically embedded after it (one per non-root
// subgraph member, in the same order as SubgraphHashes).
type BoundaryMarkerRecord struct {
	Hash           uint32
	SelectorRef    uint32
	Flags          byte
	Deps           []DepEntry
	SubgraphHashes []uint32
	RuleSets       []*RuleSetRecord
}

// DepEntry is one decoded boundary dependency entry.
type DepEntry struct {
	Kind          rules.DependencyKind
	PropRef       uint32
	ContainerHash uint32
}

// RuleSetRecord is one decoded RULE_SET.
type RuleSetRecord struct {
	Hash         uint32
	SelectorRef  uint32
	BoundaryHash uint32
	Properties   map[uint32]uint32
}

// NondeterministicRecord is one decoded NONDETERMINISTIC record.
type NondeterministicRecord struct {
	Hash        uint32
	SelectorRef uint32
	Flags       byte
}

// DecodeDynamicIndex parses a SOMD section from the front of data.
func DecodeDynamicIndex(data []byte) ([]DynamicIndexEntry, int, error) {
	if len(data) < dynamicIndexHeaderSize {
		return nil, 0, fmt.Errorf("binfmt: truncated dynamic index header")
	}
	if string(data[0:4]) != dynamicIndexMagic {
		return nil, 0, fmt.Errorf("binfmt: bad dynamic index magic %q", data[0:4])
	}
	count := binary.LittleEndian.Uint32(data[4:8])
	size := binary.LittleEndian.Uint32(data[8:12])

	body := data[dynamicIndexHeaderSize:]
	if uint64(len(body)) < uint64(size) {
		return nil, 0, fmt.Errorf("binfmt: dynamic index truncated")
	}
	body = body[:size]

	entries := make([]DynamicIndexEntry, 0, count)
	cursor := 0
	for i := uint32(0); i < count; i++ {
		if cursor+dynamicIndexEntrySize > len(body) {
			return nil, 0, fmt.Errorf("binfmt: dynamic index entry %d truncated", i)
		}
		e := DynamicIndexEntry{
			Hash:        binary.LittleEndian.Uint32(body[cursor : cursor+4]),
			SelectorRef: pool.Uint24LE(body[cursor+4 : cursor+7]),
			Offset:      binary.LittleEndian.Uint32(body[cursor+7 : cursor+11]),
		}
		entries = append(entries, e)
		cursor += dynamicIndexEntrySize
	}
	if cursor != len(body) {
		return nil, 0, fmt.Errorf("binfmt: trailing bytes after dynamic index entries")
	}
	return entries, dynamicIndexHeaderSize + cursor, nil
}

// DecodeRecordAt parses one dynamic-tier record starting at byte
// offset off within tier, dispatching on the record-type byte. For a
// BOUNDARY_MARKER it also decodes the RULE_SET records physically
// following it, one per non-root subgraph hash.
func DecodeRecordAt(tier []byte, off uint32) (any, int, error) {
	if int(off) >= len(tier) {
		return nil, 0, fmt.Errorf("binfmt: record offset %d out of range", off)
	}
	switch tier[off] {
	case recordBoundaryMarker:
		return decodeBoundaryMarker(tier, off)
	case recordNondeterministic:
		return decodeNondeterministic(tier, off)
	case recordRuleSet:
		rec, n, err := decodeRuleSet(tier, off)
		return rec, n, err
	default:
		return nil, 0, fmt.Errorf("binfmt: unknown record type 0x%02x", tier[off])
	}
}

func decodeBoundaryMarker(tier []byte, off uint32) (*BoundaryMarkerRecord, int, error) {
	const headerSize = 1 + 4 + 3 + 1 + 1 + 2
	if int(off)+headerSize > len(tier) {
		return nil, 0, fmt.Errorf("binfmt: boundary marker header truncated")
	}
	body := tier[off:]
	rec := &BoundaryMarkerRecord{
		Hash:        binary.LittleEndian.Uint32(body[1:5]),
		SelectorRef: pool.Uint24LE(body[5:8]),
	}
	depCount := int(body[8])
	rec.Flags = body[9]
	subgraphCount := int(binary.LittleEndian.Uint16(body[10:12]))

	cursor := headerSize
	for i := 0; i < depCount; i++ {
		if cursor+8 > len(body) {
			return nil, 0, fmt.Errorf("binfmt: boundary marker dep %d truncated", i)
		}
		rec.Deps = append(rec.Deps, DepEntry{
			Kind:          rules.DependencyKind(body[cursor]),
			PropRef:       pool.Uint24LE(body[cursor+1 : cursor+4]),
			ContainerHash: binary.LittleEndian.Uint32(body[cursor+4 : cursor+8]),
		})
		cursor += 8
	}
	for i := 0; i < subgraphCount; i++ {
		if cursor+4 > len(body) {
			return nil, 0, fmt.Errorf("binfmt: boundary marker subgraph hash %d truncated", i)
		}
		rec.SubgraphHashes = append(rec.SubgraphHashes, binary.LittleEndian.Uint32(body[cursor:cursor+4]))
		cursor += 4
	}

	for i := 0; i < subgraphCount-1; i++ {
		if cursor >= len(body) {
			return nil, 0, fmt.Errorf("binfmt: boundary marker missing rule-set member %d", i)
		}
		ruleSet, n, err := decodeRuleSet(tier, off+uint32(cursor))
		if err != nil {
			return nil, 0, fmt.Errorf("binfmt: boundary marker rule-set member %d: %w", i, err)
		}
		rec.RuleSets = append(rec.RuleSets, ruleSet)
		cursor += n
	}

	return rec, cursor, nil
}

func decodeRuleSet(tier []byte, off uint32) (*RuleSetRecord, int, error) {
	const headerSize = 1 + 4 + 3 + 1 + 4
	if int(off)+headerSize > len(tier) {
		return nil, 0, fmt.Errorf("binfmt: rule-set header truncated")
	}
	body := tier[off:]
	rec := &RuleSetRecord{
		Hash:         binary.LittleEndian.Uint32(body[1:5]),
		SelectorRef:  pool.Uint24LE(body[5:8]),
		BoundaryHash: binary.LittleEndian.Uint32(body[9:13]),
		Properties:   make(map[uint32]uint32),
	}
	propCount := int(body[8])
	cursor := headerSize
	for j := 0; j < propCount; j++ {
		if cursor+6 > len(body) {
			return nil, 0, fmt.Errorf("binfmt: rule-set property %d truncated", j)
		}
		nameRef := pool.Uint24LE(body[cursor : cursor+3])
		valueRef := pool.Uint24LE(body[cursor+3 : cursor+6])
		rec.Properties[nameRef] = valueRef
		cursor += 6
	}
	return rec, cursor, nil
}

func decodeNondeterministic(tier []byte, off uint32) (*NondeterministicRecord, int, error) {
	if int(off)+9 > len(tier) {
		return nil, 0, fmt.Errorf("binfmt: nondeterministic record truncated")
	}
	body := tier[off:]
	rec := &NondeterministicRecord{
		Hash:        binary.LittleEndian.Uint32(body[1:5]),
		SelectorRef: pool.Uint24LE(body[5:8]),
		Flags:       body[8],
	}
	return rec, 9, nil
}
