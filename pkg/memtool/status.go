package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// StatusInput is the validated input to memory-status (spec §4.5,
// §6). IncludeEmbeddingStats defaults to true.
type StatusInput struct {
	Workspace             string
	IncludeEmbeddingStats *bool
}

func (in StatusInput) includeEmbeddingStats() bool {
	if in.IncludeEmbeddingStats == nil {
		return true
	}
	return *in.IncludeEmbeddingStats
}

// Status implements memory-status: collection stats, optional
// per-workspace count, counts by memory_type, and optional embedding
// engine stats (spec §4.5, §4.4 "Stats").
func (o *Orchestrator) Status(ctx context.Context, in StatusInput) *model.Envelope {
	start := time.Now()

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	collectionStats, err := o.Controller.CollectionStats(ctx)
	if err != nil {
		return withDuration(model.ErrorResponse("failed to fetch collection stats", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	data := map[string]any{
		"points_count":             collectionStats.PointsCount,
		"indexed_vectors_count":    collectionStats.IndexedVectorsCount,
		"segments_count":           collectionStats.SegmentsCount,
		"status":                   collectionStats.Status,
		"optimizer_status":         collectionStats.OptimizerStatus,
		"config":                   collectionStats.Config,
		"access_tracking_failures": o.Controller.Stats().AccessTrackFailures,
	}

	if in.Workspace != "" {
		n, err := o.Controller.Count(ctx, model.SearchFilters{Workspace: in.Workspace}, true)
		if err != nil {
			return withDuration(model.ErrorResponse("failed to count workspace", model.ErrorTypeExecution, err.Error(), nil), start)
		}
		data["workspace"] = in.Workspace
		data["workspace_count"] = n
	}

	byType := map[string]any{}
	for _, t := range []model.MemoryType{model.MemoryTypeLongTerm, model.MemoryTypeEpisodic, model.MemoryTypeShortTerm} {
		n, err := o.Controller.Count(ctx, model.SearchFilters{MemoryType: t}, true)
		if err != nil {
			return withDuration(model.ErrorResponse("failed to count by memory_type", model.ErrorTypeExecution, err.Error(), nil), start)
		}
		byType[string(t)] = n
	}
	data["memory_type_counts"] = byType

	if in.includeEmbeddingStats() {
		cacheStats := o.Engine.CacheStats()
		embeddingStats := map[string]any{
			"model":      o.Engine.ModelID(),
			"cache":      cacheStats,
			"small_dims": o.Engine.SmallDims(),
			"large_dims": o.Engine.LargeDims(),
		}
		if usage, ok := o.Engine.ProviderUsage(); ok {
			embeddingStats["usage"] = usage
		}
		data["embedding_stats"] = embeddingStats
	}

	return withDuration(model.SuccessResponse("status", data, nil), start)
}
