package mcpserver

import (
	"context"

	"github.com/kodaiva/mcp-memory/pkg/memtool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type storeParams struct {
	Content   string         `json:"content" jsonschema:"description=The text to remember,minLength=1,maxLength=100000"`
	Metadata  map[string]any `json:"metadata,omitempty" jsonschema:"description=Arbitrary fields to attach: workspace, memory_type, confidence, tags, expires_at"`
	AutoChunk *bool          `json:"auto_chunk,omitempty" jsonschema:"description=Split long content into a chunk group,default=true"`
}

func handleStore(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *storeParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *storeParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Store(ctx, memtool.StoreInput{
			Content:   p.Content,
			Metadata:  p.Metadata,
			AutoChunk: p.AutoChunk,
		}))
	}
}

type queryParams struct {
	Query           string         `json:"query" jsonschema:"description=Free-text search query,minLength=1,maxLength=10000"`
	Filter          map[string]any `json:"filter,omitempty" jsonschema:"description=workspace/memory_type/min_confidence/tags/metadata filter"`
	Limit           int            `json:"limit,omitempty" jsonschema:"description=Maximum results,minimum=1,maximum=100,default=10"`
	Offset          int            `json:"offset,omitempty" jsonschema:"description=Results to skip,minimum=0,default=0"`
	ScoreThreshold  *float64       `json:"score_threshold,omitempty" jsonschema:"description=Minimum similarity score,minimum=0,maximum=1"`
	HNSWEf          int            `json:"hnsw_ef,omitempty" jsonschema:"description=HNSW search-time ef override,minimum=64,maximum=512"`
	UseHybridSearch bool           `json:"use_hybrid_search,omitempty" jsonschema:"description=Fuse with full-text search via RRF,default=false"`
	HybridAlpha     *float64       `json:"hybrid_alpha,omitempty" jsonschema:"description=Reserved hybrid weighting (currently unused),minimum=0,maximum=1"`
}

func handleQuery(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *queryParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *queryParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Query(ctx, memtool.QueryInput{
			Query:           p.Query,
			Filter:          p.Filter,
			Limit:           p.Limit,
			Offset:          p.Offset,
			ScoreThreshold:  p.ScoreThreshold,
			HNSWEf:          p.HNSWEf,
			UseHybridSearch: p.UseHybridSearch,
			HybridAlpha:     p.HybridAlpha,
		}))
	}
}

type listParams struct {
	Filter    map[string]any `json:"filter,omitempty" jsonschema:"description=workspace/memory_type/min_confidence/tags/metadata filter"`
	Limit     int            `json:"limit,omitempty" jsonschema:"description=Maximum results,minimum=1,maximum=1000,default=100"`
	Offset    int            `json:"offset,omitempty" jsonschema:"description=Results to skip,minimum=0,default=0"`
	SortBy    string         `json:"sort_by,omitempty" jsonschema:"description=Sort field,enum=created_at,enum=updated_at,enum=access_count,enum=confidence,default=created_at"`
	SortOrder string         `json:"sort_order,omitempty" jsonschema:"description=Sort direction,enum=asc,enum=desc,default=desc"`
}

func handleList(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *listParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *listParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.List(ctx, memtool.ListInput{
			Filter:    p.Filter,
			Limit:     p.Limit,
			Offset:    p.Offset,
			SortBy:    p.SortBy,
			SortOrder: p.SortOrder,
		}))
	}
}

type getParams struct {
	ID string `json:"id" jsonschema:"description=Memory id (UUID)"`
}

func handleGet(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *getParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *getParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Get(ctx, memtool.GetInput{ID: p.ID}))
	}
}

type updateParams struct {
	ID       string         `json:"id" jsonschema:"description=Memory id (UUID)"`
	Content  *string        `json:"content,omitempty" jsonschema:"description=Replacement content"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"description=Fields to merge into the stored payload"`
	Reindex  bool           `json:"reindex,omitempty" jsonschema:"description=Recompute embeddings for the new content,default=false"`
}

func handleUpdate(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *updateParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *updateParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Update(ctx, memtool.UpdateInput{
			ID:       p.ID,
			Content:  p.Content,
			Metadata: p.Metadata,
			Reindex:  p.Reindex,
		}))
	}
}

type deleteParams struct {
	ID string `json:"id" jsonschema:"description=Memory id (UUID)"`
}

func handleDelete(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *deleteParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *deleteParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Delete(ctx, memtool.DeleteInput{ID: p.ID}))
	}
}

type batchDeleteParams struct {
	IDs []string `json:"ids" jsonschema:"description=Memory ids (UUID), 1..100 entries,minItems=1,maxItems=100"`
}

func handleBatchDelete(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *batchDeleteParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *batchDeleteParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.BatchDelete(ctx, memtool.BatchDeleteInput{IDs: p.IDs}))
	}
}

type statusParams struct {
	Workspace             string `json:"workspace,omitempty" jsonschema:"description=Restrict the per-workspace count to this workspace"`
	IncludeEmbeddingStats *bool  `json:"include_embedding_stats,omitempty" jsonschema:"description=Include embedding cache/usage stats,default=true"`
}

func handleStatus(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *statusParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *statusParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Status(ctx, memtool.StatusInput{
			Workspace:             p.Workspace,
			IncludeEmbeddingStats: p.IncludeEmbeddingStats,
		}))
	}
}

type countParams struct {
	Filter map[string]any `json:"filter,omitempty" jsonschema:"description=workspace/memory_type/min_confidence/tags/metadata filter"`
}

func handleCount(o *memtool.Orchestrator) func(context.Context, *mcp.CallToolRequest, *countParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, p *countParams) (*mcp.CallToolResult, any, error) {
		return toResult(o.Count(ctx, memtool.CountInput{Filter: p.Filter}))
	}
}
