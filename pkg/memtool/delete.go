package memtool

import (
	"context"
	"errors"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// DeleteInput is the validated input to memory-delete (spec §4.5, §6).
type DeleteInput struct {
	ID string
}

// Delete implements memory-delete: existence-check then delete (spec
// §4.5). A repeated delete of an already-deleted id is a no-op, not
// an error (spec §8 idempotence laws).
func (o *Orchestrator) Delete(ctx context.Context, in DeleteInput) *model.Envelope {
	start := time.Now()

	id, err := model.ParseMemoryID(in.ID)
	if err != nil {
		return withDuration(model.ValidationError(err.Error(), nil), start)
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	if _, err := o.Controller.Get(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return withDuration(model.SuccessResponse("memory already absent; nothing deleted", map[string]any{"id": string(id)}, nil), start)
		}
		return withDuration(model.ErrorResponse("get failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	if err := o.Controller.Delete(ctx, id); err != nil {
		return withDuration(model.ErrorResponse("delete failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}
	return withDuration(model.SuccessResponse("memory deleted", map[string]any{"id": string(id)}, nil), start)
}

// BatchDeleteInput is the validated input to memory-batch-delete
// (spec §4.5, §6: 1..100 UUIDs).
type BatchDeleteInput struct {
	IDs []string
}

// BatchDelete implements memory-batch-delete: all UUIDs, no
// per-id existence pre-check, delegated straight to the controller
// (spec §4.5).
func (o *Orchestrator) BatchDelete(ctx context.Context, in BatchDeleteInput) *model.Envelope {
	start := time.Now()

	if len(in.IDs) == 0 || len(in.IDs) > 100 {
		return withDuration(model.ValidationError("ids must contain between 1 and 100 entries", nil), start)
	}

	ids := make([]model.MemoryID, len(in.IDs))
	for i, raw := range in.IDs {
		id, err := model.ParseMemoryID(raw)
		if err != nil {
			return withDuration(model.ValidationError(err.Error(), map[string]any{"id": raw}), start)
		}
		ids[i] = id
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	if err := o.Controller.BatchDelete(ctx, ids); err != nil {
		return withDuration(model.ErrorResponse("batch delete failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}
	return withDuration(model.SuccessResponse("memories deleted", map[string]any{
		"ids":           in.IDs,
		"deleted_count": len(ids),
	}, nil), start)
}
