package memtool

import (
	"context"
	"errors"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/secrets"
)

// UpdateInput is the validated input to memory-update (spec §4.5, §6).
type UpdateInput struct {
	ID       string
	Content  *string
	Metadata map[string]any
	Reindex  bool
}

// Update implements memory-update: a chunk member always refuses
// (spec §4.5 step 3, §7, S7); otherwise either a full reindexing
// overwrite (content + reindex=true) or a payload-only merge.
func (o *Orchestrator) Update(ctx context.Context, in UpdateInput) *model.Envelope {
	start := time.Now()

	id, err := model.ParseMemoryID(in.ID)
	if err != nil {
		return withDuration(model.ValidationError(err.Error(), nil), start)
	}

	if in.Content != nil {
		scan, err := o.Scanner.Scan(*in.Content)
		if err != nil {
			return withDuration(model.ErrorResponse("secret scan failed", model.ErrorTypeExecution, err.Error(), nil), start)
		}
		if scan.Decision == secrets.DecisionBlock {
			return withDuration(secretsBlockedEnvelope(scan), start)
		}
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	existing, err := o.Controller.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return withDuration(model.NotFoundError("memory"), start)
		}
		return withDuration(model.ErrorResponse("get failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	if isChunkMember(existing.Payload) {
		groupID, _ := existing.Payload["chunk_group_id"].(string)
		env := model.ValidationError("cannot update a single chunk of a chunked document", map[string]any{
			"chunk_group_id": groupID,
			"suggestion":     "delete the chunk group and re-store the full document",
		})
		return withDuration(env, start)
	}

	if in.Content != nil && in.Reindex {
		return withDuration(o.updateReindex(ctx, id, existing.Payload, *in.Content, in.Metadata), start)
	}
	return withDuration(o.updatePayloadOnly(ctx, id, in.Content, in.Metadata), start)
}

func (o *Orchestrator) updateReindex(ctx context.Context, id model.MemoryID, existing map[string]any, content string, meta map[string]any) *model.Envelope {
	pair, err := o.Engine.Embed(ctx, content)
	if err != nil {
		return model.ErrorResponse("embedding generation failed", model.ErrorTypeExecution, err.Error(), nil)
	}
	if !embedding.ValidVector(pair.Small, o.Engine.SmallDims()) || !embedding.ValidVector(pair.Large, o.Engine.LargeDims()) {
		return model.ErrorResponse("embedding produced an invalid vector", model.ErrorTypeExecution, "", nil)
	}

	p := pointFromPayload(string(id), existing)
	p.Content = content
	applyMetadata(p, meta)
	p.DenseSmall = pair.Small
	p.DenseLarge = pair.Large
	p.ApplyDefaults(time.Now())

	if err := p.Validate(); err != nil {
		return model.ValidationError(err.Error(), nil)
	}
	if err := o.Controller.Upsert(ctx, p); err != nil {
		return model.ErrorResponse("failed to update memory", model.ErrorTypeExecution, err.Error(), nil)
	}
	return model.SuccessResponse("memory updated and reindexed", map[string]any{"id": string(id)}, nil)
}

func (o *Orchestrator) updatePayloadOnly(ctx context.Context, id model.MemoryID, content *string, meta map[string]any) *model.Envelope {
	// Merge caller-supplied fields verbatim (spec §4.4 "Update payload":
	// no reindex, no type coercion beyond what the caller already sent).
	merged := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		merged[k] = v
	}
	if content != nil {
		merged["content"] = *content
	}

	if err := o.Controller.UpdatePayload(ctx, id, merged); err != nil {
		return model.ErrorResponse("failed to update memory", model.ErrorTypeExecution, err.Error(), nil)
	}
	return model.SuccessResponse("memory updated", map[string]any{"id": string(id)}, nil)
}
