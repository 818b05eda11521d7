package memtool

import (
	"context"
	"errors"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// GetInput is the validated input to memory-get (spec §4.5, §6).
type GetInput struct {
	ID string
}

// Get implements memory-get: a UUID-validated point lookup.
func (o *Orchestrator) Get(ctx context.Context, in GetInput) *model.Envelope {
	start := time.Now()

	id, err := model.ParseMemoryID(in.ID)
	if err != nil {
		return withDuration(model.ValidationError(err.Error(), nil), start)
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	point, err := o.Controller.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return withDuration(model.NotFoundError("memory"), start)
		}
		return withDuration(model.ErrorResponse("get failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	content, metadata := splitPayload(point.Payload)
	return withDuration(model.SuccessResponse("memory found", map[string]any{
		"id":       point.ID,
		"content":  content,
		"metadata": metadata,
	}, nil), start)
}
