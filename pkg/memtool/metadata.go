package memtool

import (
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// workspaceKey is the reserved metadata field the orchestrator
// handles separately from the generic extras merge, since its
// presence/absence/null-ness drives the C2 priority chain (spec
// §4.2/§4.5).
const workspaceKey = "workspace"

// explicitWorkspace inspects a caller-supplied metadata bag for an
// explicit workspace directive: (value, true, false) when a string
// workspace was given, ("", true, true) when the key was present but
// explicitly null ("use no workspace"), or ("", false, false) when
// the key is absent entirely (auto-resolve).
func explicitWorkspace(meta map[string]any) (value string, present bool, explicitNone bool) {
	v, ok := meta[workspaceKey]
	if !ok {
		return "", false, false
	}
	if v == nil {
		return "", true, true
	}
	if s, ok := v.(string); ok {
		return s, true, false
	}
	return "", true, false
}

// applyMetadata merges a caller-supplied metadata bag into p's typed
// fields, routing unrecognized keys into p.Extra so they round-trip
// through the index unchanged (spec §9 "Dynamic payload fields").
// workspace is handled by the caller via explicitWorkspace, not here.
func applyMetadata(p *model.Point, meta map[string]any) {
	for k, v := range meta {
		switch k {
		case workspaceKey:
			// handled separately
		case "memory_type":
			if s, ok := v.(string); ok {
				p.MemoryType = model.MemoryType(s)
			}
		case "confidence":
			if f, ok := toFloat(v); ok {
				p.Confidence = f
			}
		case "tags":
			if tags, ok := toStringSlice(v); ok {
				p.Tags = tags
			}
		case "expires_at":
			if t, ok := toTime(v); ok {
				p.ExpiresAt = &t
			}
		default:
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[k] = v
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// splitPayload separates a stored point's payload into its content
// string and the remaining metadata (spec §3: Memory Point's content
// plus "arbitrary additional caller fields"), for echoing back to
// callers on get/query/list.
func splitPayload(payload map[string]any) (content string, metadata map[string]any) {
	metadata = make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "content" {
			continue
		}
		metadata[k] = v
	}
	content, _ = payload["content"].(string)
	return content, metadata
}

// isChunkMember reports whether a stored point's payload carries the
// chunk-membership trio (spec §3/§4.5 update step 3).
func isChunkMember(payload map[string]any) bool {
	_, hasIdx := payload["chunk_index"]
	_, hasTotal := payload["total_chunks"]
	_, hasGroup := payload["chunk_group_id"]
	return hasIdx && hasTotal && hasGroup
}

// pointFromPayload reconstructs a model.Point from a stored payload
// (the inverse of vectorindex's pointPayload), used by memory-update's
// reindex path to preserve every existing field while only the
// content and vectors change.
func pointFromPayload(id string, payload map[string]any) *model.Point {
	p := &model.Point{ID: model.MemoryID(id), Extra: map[string]any{}}
	for k, v := range payload {
		switch k {
		case "content":
			p.Content, _ = v.(string)
		case "workspace":
			p.Workspace, _ = v.(string)
		case "memory_type":
			if s, ok := v.(string); ok {
				p.MemoryType = model.MemoryType(s)
			}
		case "confidence":
			if f, ok := toFloat(v); ok {
				p.Confidence = f
			}
		case "tags":
			if tags, ok := toStringSlice(v); ok {
				p.Tags = tags
			}
		case "created_at":
			if t, ok := toTime(v); ok {
				p.CreatedAt = t
			}
		case "updated_at":
			if t, ok := toTime(v); ok {
				p.UpdatedAt = t
			}
		case "expires_at":
			if t, ok := toTime(v); ok {
				p.ExpiresAt = &t
			}
		case "last_accessed_at":
			if t, ok := toTime(v); ok {
				p.LastAccessedAt = &t
			}
		case "access_count":
			if f, ok := toFloat(v); ok {
				p.AccessCount = int(f)
			}
		case "chunk_index":
			if f, ok := toFloat(v); ok {
				idx := int(f)
				p.ChunkIndex = &idx
			}
		case "total_chunks":
			if f, ok := toFloat(v); ok {
				total := int(f)
				p.TotalChunks = &total
			}
		case "chunk_group_id":
			p.ChunkGroupID, _ = v.(string)
		default:
			p.Extra[k] = v
		}
	}
	return p
}

// filterFromMap builds a model.SearchFilters from the loosely typed
// filter object the MCP tool surface accepts (spec §6 filter shape).
func filterFromMap(raw map[string]any) model.SearchFilters {
	var f model.SearchFilters
	if raw == nil {
		return f
	}
	if ws, ok := raw["workspace"].(string); ok {
		f.Workspace = ws
	}
	if mt, ok := raw["memory_type"].(string); ok {
		f.MemoryType = model.MemoryType(mt)
	}
	if mc, ok := toFloat(raw["min_confidence"]); ok {
		f.MinConfidence = &mc
	}
	if tags, ok := toStringSlice(raw["tags"]); ok {
		f.Tags = tags
	}
	if meta, ok := raw["metadata"].(map[string]any); ok {
		f.Metadata = meta
	}
	return f
}
