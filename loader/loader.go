// Package loader consumes the binary format binfmt emits and exposes
// read-only lookups over an immutable byte buffer: get_static,
// get_dynamic, resolve_string, and stats.
package loader

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"som/binfmt"
	"som/pool"
	"som/rules"
)

// Stats summarizes one Load call, exposed for diagnostics and the
// Summary Record.
type Stats struct {
	FileSize            int
	PoolEntries         int
	StaticCount         int
	IndexedDynamicCount int
	ParseTime           time.Duration
}

// Loader is a read-only view over one analyzed stylesheet's binary
// encoding. All lookups are safe for concurrent use: the static map
// and dynamic index are built once during Load and never mutated
// afterward, and the dynamic record cache computes each record at
// most once regardless of how many goroutines race to read it first.
type Loader struct {
	log *zap.Logger

	pool *pool.Pool

	staticByHash map[uint32]binfmt.StaticRecord
	dynamicIndex map[uint32]binfmt.DynamicIndexEntry
	dynamicTier  []byte

	dynamicCache *xsync.Map[uint32, *dynamicCacheEntry]

	stats Stats
}

type dynamicCacheEntry struct {
	record any
	err    error
}

// Load parses data — a complete BSOM buffer — validating the file
// header and every section header, and building the hash-keyed static
// and dynamic-index maps eagerly. Dynamic record bodies are left
// unparsed until first touch. log may be nil.
func Load(data []byte, log *zap.Logger) (*Loader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("som-loader")
	start := time.Now()

	if _, err := binfmt.DecodeFileHeader(data); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	rest := data[16:]

	p, n, err := pool.Decode(rest)
	if err != nil {
		return nil, fmt.Errorf("loader: pool: %w", err)
	}
	rest = rest[n:]

	staticRecords, n, err := binfmt.DecodeStaticTier(rest)
	if err != nil {
		return nil, fmt.Errorf("loader: static tier: %w", err)
	}
	rest = rest[n:]

	indexEntries, n, err := binfmt.DecodeDynamicIndex(rest)
	if err != nil {
		return nil, fmt.Errorf("loader: dynamic index: %w", err)
	}
	rest = rest[n:]

	staticByHash := make(map[uint32]binfmt.StaticRecord, len(staticRecords))
	for _, rec := range staticRecords {
		staticByHash[rec.Hash] = rec
	}

	dynamicIndex := make(map[uint32]binfmt.DynamicIndexEntry, len(indexEntries))
	for _, e := range indexEntries {
		dynamicIndex[e.Hash] = e
	}

	l := &Loader{
		log:          log,
		pool:         p,
		staticByHash: staticByHash,
		dynamicIndex: dynamicIndex,
		dynamicTier:  rest,
		dynamicCache: xsync.NewMap[uint32, *dynamicCacheEntry](),
		stats: Stats{
			FileSize:            len(data),
			PoolEntries:         p.Len(),
			StaticCount:         len(staticRecords),
			IndexedDynamicCount: len(indexEntries),
		},
	}
	l.stats.ParseTime = time.Since(start)
	log.Debug("loaded binary",
		zap.Int("bytes", l.stats.FileSize),
		zap.Int("pool_entries", l.stats.PoolEntries),
		zap.Int("static_count", l.stats.StaticCount),
		zap.Int("indexed_dynamic_count", l.stats.IndexedDynamicCount),
	)
	return l, nil
}

// Stats returns a copy of this loader's load-time statistics.
func (l *Loader) Stats() Stats {
	return l.stats
}

// ResolveString resolves a pool index to its string, or ("", false)
// for NullRef or an out-of-range index.
func (l *Loader) ResolveString(ref uint32) (string, bool) {
	return l.pool.Resolve(ref)
}

// GetStatic looks up a STATIC record by selector text.
func (l *Loader) GetStatic(selector string) (*binfmt.StaticRecord, bool) {
	return l.GetStaticByHash(rules.HashSelector(selector))
}

// GetStaticByHash looks up a STATIC record by precomputed hash.
func (l *Loader) GetStaticByHash(hash uint32) (*binfmt.StaticRecord, bool) {
	rec, ok := l.staticByHash[hash]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// GetDynamic looks up a BOUNDARY_MARKER or NONDETERMINISTIC record by
// selector text. The record body is parsed lazily on first touch and
// cached for identity reuse; RULE_SET records are never returned on
// their own, only embedded in their boundary's BoundaryMarkerRecord.
func (l *Loader) GetDynamic(selector string) (any, error) {
	return l.GetDynamicByHash(rules.HashSelector(selector))
}

// GetDynamicByHash is GetDynamic keyed by a precomputed hash.
func (l *Loader) GetDynamicByHash(hash uint32) (any, error) {
	entry, ok := l.dynamicIndex[hash]
	if !ok {
		return nil, nil
	}

	cached, _ := l.dynamicCache.LoadOrCompute(hash, func() (*dynamicCacheEntry, bool) {
		rec, _, err := binfmt.DecodeRecordAt(l.dynamicTier, entry.Offset)
		if err != nil {
			return &dynamicCacheEntry{err: fmt.Errorf("loader: parse dynamic record at %d: %w", entry.Offset, err)}, false
		}
		return &dynamicCacheEntry{record: rec}, false
	})
	return cached.record, cached.err
}
