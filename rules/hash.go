package rules

import "hash/fnv"

// HashSelector returns the FNV-1a-32 hash of a selector's UTF-8 bytes.
// Offset basis 0x811c9dc5 and prime 0x01000193, exactly the constants
// hash/fnv's fnv.New32a already uses.
func HashSelector(selector string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(selector))
	return h.Sum32()
}
