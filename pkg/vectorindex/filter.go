package vectorindex

import (
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
)

// BuildFilter translates SearchFilters into a Qdrant-shaped filter
// document. excludeExpired additionally excludes points whose
// expires_at has already passed.
func BuildFilter(f model.SearchFilters, excludeExpired bool, now time.Time) map[string]any {
	var must []any
	var mustNot []any

	if f.Workspace != "" {
		must = append(must, matchKeyword("workspace", f.Workspace))
	}
	if f.MemoryType != "" {
		must = append(must, matchKeyword("memory_type", string(f.MemoryType)))
	}
	if f.MinConfidence != nil {
		must = append(must, map[string]any{
			"key":   "confidence",
			"range": map[string]any{"gte": *f.MinConfidence},
		})
	}
	for _, tag := range f.Tags {
		must = append(must, matchKeyword("tags", tag))
	}
	for key, value := range f.Metadata {
		// Caller metadata fields round-trip as flat top-level payload
		// keys (see pointPayload), not nested under a "metadata"
		// object, so the filter key matches the payload key directly.
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}

	if excludeExpired {
		// Exclude points whose expires_at has already passed *or equals*
		// now (spec §3: "expires_at ≤ now"); points with no expires_at
		// are untouched by a must_not clause, so they are kept.
		mustNot = append(mustNot, map[string]any{
			"key":   "expires_at",
			"range": map[string]any{"lte": now.UTC().Format(time.RFC3339)},
		})
	}

	out := map[string]any{}
	if len(must) > 0 {
		out["must"] = must
	}
	if len(mustNot) > 0 {
		out["must_not"] = mustNot
	}
	return out
}

func matchKeyword(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}
