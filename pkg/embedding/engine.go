// Package embedding implements the embedding engine (C3) and chunker
// (C5): dual-vector (small + large) generation behind a bounded LRU
// cache, with pluggable remote and local providers.
package embedding

import (
	"context"
	"math"
)

// Vector is a dense embedding.
type Vector = []float32

// Pair is the (small, large) dual-vector result of an embed call.
type Pair struct {
	Small Vector
	Large Vector
}

// Provider generates dual-vector embeddings for a piece of text.
// Implementations report their dimensions and a stable model id used
// in cache keys.
type Provider interface {
	Embed(ctx context.Context, text string) (Pair, error)
	ModelID() string
	SmallDims() int
	LargeDims() int
}

// ChunkVector is a single chunk of a larger document, carrying its
// small-vector embedding; the caller computes the large vector for
// each chunk on demand (spec: C5 emits only the small vector eagerly).
type ChunkVector struct {
	Index int
	Total int
	Text  string
	Small Vector
}

// Engine wraps a Provider with the bounded LRU cache (spec §4.3) and
// cumulative usage accounting.
type Engine struct {
	provider Provider
	cache    *Cache
}

// NewEngine builds an Engine around provider with an LRU cache of the
// given capacity (spec default 10,000).
func NewEngine(provider Provider, cacheCapacity int) *Engine {
	return &Engine{
		provider: provider,
		cache:    NewCache(cacheCapacity),
	}
}

// Embed returns the dual-vector embedding of text, serving from cache
// when possible.
func (e *Engine) Embed(ctx context.Context, text string) (Pair, error) {
	key := CacheKey(e.provider.ModelID(), e.provider.SmallDims(), text)
	if pair, ok := e.cache.Get(key); ok {
		return pair, nil
	}

	pair, err := e.provider.Embed(ctx, text)
	if err != nil {
		return Pair{}, err
	}
	e.cache.Put(key, pair)
	return pair, nil
}

// Chunk splits text via the configured chunker and returns only the
// small vector for each chunk. Each chunk goes through Embed, so its
// full pair is computed and cached, and a later Embed of the same chunk
// text for its large vector is served from the cache.
func (e *Engine) Chunk(ctx context.Context, text string, opts ChunkOptions) ([]ChunkVector, error) {
	windows := Chunk(text, opts)
	out := make([]ChunkVector, 0, len(windows))
	for _, w := range windows {
		pair, err := e.Embed(ctx, w.Text)
		if err != nil {
			return nil, err
		}
		out = append(out, ChunkVector{Index: w.Index, Total: len(windows), Text: w.Text, Small: pair.Small})
	}
	return out, nil
}

// ModelID exposes the underlying provider's model identifier.
func (e *Engine) ModelID() string { return e.provider.ModelID() }

// SmallDims exposes the configured small-vector dimension (D_s).
func (e *Engine) SmallDims() int { return e.provider.SmallDims() }

// LargeDims exposes the configured large-vector dimension (D_l).
func (e *Engine) LargeDims() int { return e.provider.LargeDims() }

// CacheStats reports the engine's LRU cache usage (spec §4.3).
func (e *Engine) CacheStats() Stats { return e.cache.Stats() }

// ProviderUsage returns the underlying provider's cumulative token/
// cost usage when it reports one (the remote provider), or the zero
// value and false otherwise (spec §4.3: "cost is zero" for local).
func (e *Engine) ProviderUsage() (Usage, bool) {
	if up, ok := e.provider.(interface{ Usage() Usage }); ok {
		return up.Usage(), true
	}
	return Usage{}, false
}

// ValidVector reports whether v is exactly dims components long and
// every component is finite (spec §4.3 "Validation helper").
func ValidVector(v []float32, dims int) bool {
	if len(v) != dims {
		return false
	}
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}
