package binfmt

import (
	"encoding/binary"
	"fmt"

	"som/pool"
	"som/rules"
)

const (
	staticMagic      = "SOMS"
	staticHeaderSize = 12
)

// StaticRecord is one decoded STATIC-tier record.
type StaticRecord struct {
	Hash        uint32
	SelectorRef uint32
	Properties  map[uint32]uint32 // name_ref -> value_ref
}

// encodeStaticTier serializes every EmitStatic rule as a fixed-layout
// record, ordered by ascending selector hash.
func encodeStaticTier(arena *rules.Arena, p *pool.Pool) ([]byte, error) {
	var staticRules []*rules.Rule
	for _, r := range arena.All() {
		if r.EmitType == rules.EmitStatic {
			staticRules = append(staticRules, r)
		}
	}
	orderByHash(staticRules)

	var records []byte
	for _, r := range staticRules {
		propBytes, count, err := encodePropertyEntries(visibleProperties(r), p)
		if err != nil {
			return nil, err
		}
		rec := make([]byte, 4+3+1)
		binary.LittleEndian.PutUint32(rec[0:4], rules.HashSelector(r.Selector))
		pool.PutUint24LE(rec[4:7], p.Ref(r.Selector))
		rec[7] = byte(count)
		records = append(records, rec...)
		records = append(records, propBytes...)
	}

	header := make([]byte, staticHeaderSize)
	copy(header[0:4], staticMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(staticRules)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(records)))

	return append(header, records...), nil
}

// DecodeStaticTier parses a SOMS section from the front of data and
// returns the records plus bytes consumed.
func DecodeStaticTier(data []byte) ([]StaticRecord, int, error) {
	if len(data) < staticHeaderSize {
		return nil, 0, fmt.Errorf("binfmt: truncated static tier header")
	}
	if string(data[0:4]) != staticMagic {
		return nil, 0, fmt.Errorf("binfmt: bad static tier magic %q", data[0:4])
	}
	count := binary.LittleEndian.Uint32(data[4:8])
	size := binary.LittleEndian.Uint32(data[8:12])

	body := data[staticHeaderSize:]
	if uint64(len(body)) < uint64(size) {
		return nil, 0, fmt.Errorf("binfmt: static tier truncated, want %d bytes have %d", size, len(body))
	}
	body = body[:size]

	records := make([]StaticRecord, 0, count)
	cursor := 0
	for i := uint32(0); i < count; i++ {
		if cursor+8 > len(body) {
			return nil, 0, fmt.Errorf("binfmt: static record %d truncated", i)
		}
		rec := StaticRecord{
			Hash:        binary.LittleEndian.Uint32(body[cursor : cursor+4]),
			SelectorRef: pool.Uint24LE(body[cursor+4 : cursor+7]),
			Properties:  make(map[uint32]uint32),
		}
		propCount := int(body[cursor+7])
		cursor += 8
		for j := 0; j < propCount; j++ {
			if cursor+6 > len(body) {
				return nil, 0, fmt.Errorf("binfmt: static record %d property %d truncated", i, j)
			}
			nameRef := pool.Uint24LE(body[cursor : cursor+3])
			valueRef := pool.Uint24LE(body[cursor+3 : cursor+6])
			rec.Properties[nameRef] = valueRef
			cursor += 6
		}
		records = append(records, rec)
	}
	if cursor != len(body) {
		return nil, 0, fmt.Errorf("binfmt: %d trailing bytes after static records", len(body)-cursor)
	}

	return records, staticHeaderSize + cursor, nil
}
