package memtool

import (
	"context"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/secrets"
	"github.com/kodaiva/mcp-memory/pkg/workspace"
)

// StoreInput is the validated input to memory-store (spec §4.5, §6).
type StoreInput struct {
	Content   string
	Metadata  map[string]any
	AutoChunk *bool
}

func (in StoreInput) autoChunk() bool {
	if in.AutoChunk == nil {
		return true
	}
	return *in.AutoChunk
}

// Store implements memory-store: secret-scan admission, expiry
// derivation, workspace resolution, and either a single dual-vector
// upsert or a chunked upsert sharing one chunk_group_id (spec §4.5).
func (o *Orchestrator) Store(ctx context.Context, in StoreInput) *model.Envelope {
	start := time.Now()

	if len(in.Content) == 0 {
		return withDuration(model.ValidationError("content must not be empty", nil), start)
	}
	if len(in.Content) > 100_000 {
		return withDuration(model.ValidationError("content exceeds 100000 characters", nil), start)
	}

	scan, err := o.Scanner.Scan(in.Content)
	if err != nil {
		return withDuration(model.ErrorResponse("secret scan failed", model.ErrorTypeExecution, err.Error(), nil), start)
	}
	if scan.Decision == secrets.DecisionBlock {
		return withDuration(secretsBlockedEnvelope(scan), start)
	}

	if err := o.ensureInitialized(ctx); err != nil {
		return withDuration(model.ErrorResponse("vector index unavailable", model.ErrorTypeExecution, err.Error(), nil), start)
	}

	now := time.Now()
	base := &model.Point{Content: in.Content}
	applyMetadata(base, in.Metadata)
	if base.MemoryType == "" {
		base.MemoryType = model.MemoryTypeLongTerm
	}
	if base.ExpiresAt == nil {
		if d, ok := base.MemoryType.DefaultExpiry(); ok {
			expires := now.Add(d)
			base.ExpiresAt = &expires
		}
	}

	resolvedWs, err := o.resolveStoreWorkspace(ctx, in.Metadata)
	if err != nil {
		return withDuration(model.ValidationError(err.Error(), nil), start)
	}
	base.Workspace = resolvedWs

	if in.autoChunk() && len([]rune(in.Content)) > o.ChunkThreshold {
		return withDuration(o.storeChunked(ctx, base, in.Content, now), start)
	}
	return withDuration(o.storeSingle(ctx, base, in.Content, now), start)
}

func (o *Orchestrator) resolveStoreWorkspace(ctx context.Context, meta map[string]any) (string, error) {
	value, present, explicitNone := explicitWorkspace(meta)
	switch {
	case present && explicitNone:
		res, err := o.Resolver.Resolve(ctx, workspace.ExplicitNone)
		if err != nil {
			return "", err
		}
		return res.Workspace, nil
	case present:
		res, err := o.Resolver.Resolve(ctx, value)
		if err != nil {
			return "", err
		}
		return res.Workspace, nil
	default:
		res, err := o.Resolver.Resolve(ctx, "")
		if err != nil {
			return "", err
		}
		return res.Workspace, nil
	}
}

func (o *Orchestrator) storeSingle(ctx context.Context, base *model.Point, content string, now time.Time) *model.Envelope {
	pair, err := o.Engine.Embed(ctx, content)
	if err != nil {
		return model.ErrorResponse("embedding generation failed", model.ErrorTypeExecution, err.Error(), nil)
	}
	if !embedding.ValidVector(pair.Small, o.Engine.SmallDims()) || !embedding.ValidVector(pair.Large, o.Engine.LargeDims()) {
		return model.ErrorResponse("embedding produced an invalid vector", model.ErrorTypeExecution, "", nil)
	}

	p := *base
	p.DenseSmall = pair.Small
	p.DenseLarge = pair.Large
	p.ApplyDefaults(now)
	if err := p.Validate(); err != nil {
		return model.ValidationError(err.Error(), nil)
	}

	if err := o.Controller.Upsert(ctx, &p); err != nil {
		return model.ErrorResponse("failed to store memory", model.ErrorTypeExecution, err.Error(), nil)
	}

	return model.SuccessResponse("memory stored", map[string]any{
		"id":        string(p.ID),
		"workspace": p.Workspace,
	}, nil)
}

func (o *Orchestrator) storeChunked(ctx context.Context, base *model.Point, content string, now time.Time) *model.Envelope {
	chunks, err := o.Engine.Chunk(ctx, content, o.ChunkOptions)
	if err != nil {
		return model.ErrorResponse("chunk embedding failed", model.ErrorTypeExecution, err.Error(), nil)
	}

	groupID := string(model.NewMemoryID())
	points := make([]*model.Point, 0, len(chunks))
	for _, cv := range chunks {
		pair, err := o.Engine.Embed(ctx, cv.Text)
		if err != nil {
			return model.ErrorResponse("chunk embedding failed", model.ErrorTypeExecution, err.Error(), nil)
		}
		if !embedding.ValidVector(pair.Large, o.Engine.LargeDims()) {
			return model.ErrorResponse("embedding produced an invalid vector", model.ErrorTypeExecution, "", nil)
		}

		idx, total := cv.Index, cv.Total
		p := *base
		p.Content = cv.Text
		p.ChunkIndex = &idx
		p.TotalChunks = &total
		p.ChunkGroupID = groupID
		p.DenseSmall = cv.Small
		p.DenseLarge = pair.Large
		p.ApplyDefaults(now)
		if err := p.Validate(); err != nil {
			return model.ValidationError(err.Error(), nil)
		}
		points = append(points, &p)
	}

	if err := o.Controller.BatchUpsert(ctx, points); err != nil {
		return model.ErrorResponse("failed to store chunked memory", model.ErrorTypeExecution, err.Error(), nil)
	}

	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = string(p.ID)
	}

	return model.SuccessResponse("memory stored as a chunked document", map[string]any{
		"chunk_group_id": groupID,
		"ids":            ids,
		"chunks":         len(points),
		"workspace":      base.Workspace,
	}, nil)
}

// secretsBlockedEnvelope builds the VALIDATION_ERROR envelope for a
// blocked admission decision, carrying the redaction preview and
// detected-type summary (spec §4.1/§7).
func secretsBlockedEnvelope(scan *secrets.Result) *model.Envelope {
	detections := make([]map[string]any, len(scan.Detections))
	for i, d := range scan.Detections {
		detections[i] = map[string]any{
			"type":       d.Type,
			"confidence": string(d.Confidence),
			"context":    d.Context,
		}
	}
	env := model.ErrorResponse("content was blocked by secret scanning", model.ErrorTypeValidation, scan.Reason, map[string]any{
		"error_code":        "SECRETS_DETECTED",
		"redaction_preview": scan.Sanitized,
		"detections":        detections,
	})
	return env
}
