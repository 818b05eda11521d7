package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
)

// QueryInput is the validated input to memory-query (spec §4.5, §6).
type QueryInput struct {
	Query           string
	Filter          map[string]any
	Limit           int
	Offset          int
	ScoreThreshold  *float64
	HNSWEf          int
	UseHybridSearch bool
	HybridAlpha     *float64
}

// Query implements memory-query: embeds the query text, searches the
// dense_large space (optionally fused with full-text via RRF), and
// echoes each hit's content/score/metadata (spec §4.5).
func (o *Orchestrator) Query(ctx context.Context, in QueryInput) *model.Envelope {
	start := time.Now()

	if len(in.Query) == 0 || len(in.Query) > 10_000 {
		return withDuration(model.ValidationError("query must be 1..10000 characters", nil), start)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	pair, err := o.Engine.Embed(ctx, in.Query)
	if err != nil {
		return withDuration(model.ErrorResponse("embedding generation failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}
	if !embedding.ValidVector(pair.Large, o.Engine.LargeDims()) {
		return withDuration(model.ErrorResponse("embedding produced an invalid vector", model.ErrorTypeExecution, "", nil), start)
	}

	opts := vectorindex.SearchOptions{
		Filter:         filterFromMap(in.Filter),
		Limit:          limit,
		Offset:         in.Offset,
		ScoreThreshold: in.ScoreThreshold,
		HNSWEf:         in.HNSWEf,
		ExcludeExpired: true,
	}

	var results []vectorindex.ScoredPoint
	if in.UseHybridSearch {
		results, err = o.Controller.HybridSearch(ctx, in.Query, pair.Small, pair.Large, in.HybridAlpha, opts)
	} else {
		results, err = o.Controller.Search(ctx, pair.Small, pair.Large, opts)
	}
	if err != nil {
		return withDuration(model.ErrorResponse("query failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	out := make([]map[string]any, len(results))
	for i, r := range results {
		content, metadata := splitPayload(r.Payload)
		out[i] = map[string]any{
			"id":       r.ID,
			"content":  content,
			"score":    r.Score,
			"metadata": metadata,
		}
	}

	return withDuration(model.SuccessResponse("query complete", map[string]any{
		"query":   in.Query,
		"results": out,
	}, nil), start)
}
