// Package memtool implements the tool orchestrator (spec §4.5, C6):
// the nine validated, typed MCP operations that compose the secret
// scanner, workspace resolver, embedding engine, chunker and vector
// index controller into atomic, envelope-shaped actions. Grounded on
// the teacher's pkg/usecase/alert UseCase+Options shape and
// pkg/tool/bigquery's validate-call-wrap execution pattern.
package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/secrets"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
	"github.com/kodaiva/mcp-memory/pkg/workspace"
)

// ChunkThresholdDefault is the content length above which
// auto_chunk=true splits a document into a chunk group (spec §4.5:
// "chunk_threshold (1000)").
const ChunkThresholdDefault = 1000

// Orchestrator composes C1–C5 into the nine memory-* tool operations.
type Orchestrator struct {
	Scanner    *secrets.Scanner
	Resolver   *workspace.Resolver
	Engine     *embedding.Engine
	Controller *vectorindex.Controller

	ChunkThreshold int
	ChunkOptions   embedding.ChunkOptions
}

// Options configures a new Orchestrator. Zero-value ChunkThreshold
// and ChunkOptions fall back to the spec's defaults.
type Options struct {
	Scanner    *secrets.Scanner
	Resolver   *workspace.Resolver
	Engine     *embedding.Engine
	Controller *vectorindex.Controller

	ChunkThreshold int
	ChunkOptions   embedding.ChunkOptions
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	threshold := opts.ChunkThreshold
	if threshold <= 0 {
		threshold = ChunkThresholdDefault
	}
	chunkOpts := opts.ChunkOptions
	if chunkOpts.ChunkSize <= 0 {
		chunkOpts = embedding.DefaultChunkOptions()
	}
	return &Orchestrator{
		Scanner:        opts.Scanner,
		Resolver:       opts.Resolver,
		Engine:         opts.Engine,
		Controller:     opts.Controller,
		ChunkThreshold: threshold,
		ChunkOptions:   chunkOpts,
	}
}

// withDuration stamps env.Metadata.duration_ms with the elapsed time
// since start (spec §4.5: "metadata.duration_ms is the wall-clock
// duration"), without disturbing any metadata the operation already
// set.
func withDuration(env *model.Envelope, start time.Time) *model.Envelope {
	if env.Metadata == nil {
		env.Metadata = map[string]any{}
	}
	env.Metadata["duration_ms"] = time.Since(start).Milliseconds()
	return env
}

// ensureInitialized lazily initializes the collection before the
// first operation that touches it, idempotent via Controller's
// sync.Once (spec §5/§9: "idempotent future").
func (o *Orchestrator) ensureInitialized(ctx context.Context) error {
	return o.Controller.Initialize(ctx)
}
