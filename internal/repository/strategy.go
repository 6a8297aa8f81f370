package repository

import "github.com/tkhorram/convoytrack/internal/domain/types"

// ReadStrategy selects how a read consults the two stores.
type ReadStrategy string

const (
	// ReadCacheFirst serves from cache when present, falls back to the
	// durable store on miss and repopulates the cache.
	ReadCacheFirst ReadStrategy = "cache_first"
	// ReadThrough always reads the durable store and refreshes the cache.
	ReadThrough ReadStrategy = "read_through"
)

// WriteStrategy selects how a write propagates across the two stores.
type WriteStrategy string

const (
	// WriteThrough writes the durable store, then refreshes the cache.
	WriteThrough WriteStrategy = "write_through"
	// WriteAround writes only the durable store and evicts the cached copy;
	// the next read repopulates it.
	WriteAround WriteStrategy = "write_around"
)

// Strategy pairs the read and write behavior for one entity kind.
type Strategy struct {
	Read  ReadStrategy
	Write WriteStrategy
}

// StrategyTable maps entity kinds to their strategies. The table is fixed
// at construction; there is no per-call override.
type StrategyTable map[types.EntityKind]Strategy

// DefaultStrategies returns the stock table. High-frequency telemetry is
// write-around so the ingest path never pays a cache write for samples
// nobody may read; everything else keeps the cache warm on write.
func DefaultStrategies() StrategyTable {
	return StrategyTable{
		types.KindConvoy:      {Read: ReadCacheFirst, Write: WriteThrough},
		types.KindUnit:        {Read: ReadCacheFirst, Write: WriteThrough},
		types.KindWaypoint:    {Read: ReadCacheFirst, Write: WriteThrough},
		types.KindTelemetry:   {Read: ReadCacheFirst, Write: WriteAround},
		types.KindEngagement:  {Read: ReadCacheFirst, Write: WriteThrough},
		types.KindLeaderboard: {Read: ReadCacheFirst, Write: WriteThrough},
	}
}

// For returns the strategy for kind, defaulting to cache-first /
// write-through for kinds absent from the table.
func (t StrategyTable) For(kind types.EntityKind) Strategy {
	if s, ok := t[kind]; ok {
		return s
	}
	return Strategy{Read: ReadCacheFirst, Write: WriteThrough}
}
