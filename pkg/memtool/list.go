package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
)

// ListInput is the validated input to memory-list (spec §4.5, §6).
type ListInput struct {
	Filter    map[string]any
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

const listPreviewChars = 200

// List implements memory-list: a fast scroll path when sorting by
// created_at, a slow in-memory sort for any other field, with content
// truncated to 200 characters in the returned preview (spec §4.5).
func (o *Orchestrator) List(ctx context.Context, in ListInput) *model.Envelope {
	start := time.Now()

	limit := in.Limit
	if limit <= 0 {
		limit = 100
	}
	sortBy := in.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := in.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	results, err := o.Controller.List(ctx, vectorindex.ListOptions{
		Filter:         filterFromMap(in.Filter),
		Limit:          limit,
		Offset:         in.Offset,
		SortBy:         sortBy,
		SortOrder:      sortOrder,
		ExcludeExpired: true,
	})
	if err != nil {
		return withDuration(model.ErrorResponse("list failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	out := make([]map[string]any, len(results))
	for i, r := range results {
		content, metadata := splitPayload(r.Payload)
		out[i] = map[string]any{
			"id":       r.ID,
			"content":  truncate(content, listPreviewChars),
			"metadata": metadata,
		}
	}

	return withDuration(model.SuccessResponse("list complete", map[string]any{
		"items": out,
		"count": len(out),
	}, nil), start)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
