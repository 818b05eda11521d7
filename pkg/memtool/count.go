package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// CountInput is the validated input to memory-count (spec §4.5, §6).
type CountInput struct {
	Filter map[string]any
}

// Count implements memory-count: a straight delegation to the
// controller's approximate-count query (spec §4.5).
func (o *Orchestrator) Count(ctx context.Context, in CountInput) *model.Envelope {
	start := time.Now()

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	n, err := o.Controller.Count(ctx, filterFromMap(in.Filter), true)
	if err != nil {
		return withDuration(model.ErrorResponse("count failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}
	return withDuration(model.SuccessResponse("count complete", map[string]any{"count": n}, nil), start)
}
