package memtool_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/memtool"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/secrets"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
	"github.com/kodaiva/mcp-memory/pkg/workspace"
	"github.com/m-mizutani/gt"
)

// fakeIndex is a minimal in-memory stand-in for the vector store's
// REST API (same surface as vectorindex's own controller_test.go
// double), just enough to exercise the orchestrator end to end.
type fakeIndex struct {
	mu       sync.Mutex
	created  bool
	points   map[string]map[string]any
	requests int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: map[string]map[string]any{}}
}

func (f *fakeIndex) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/collections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		created := f.created
		f.mu.Unlock()
		var names []map[string]string
		if created {
			names = append(names, map[string]string{"name": "mcp-memory"})
		}
		writeJSON(w, map[string]any{"result": map[string]any{"collections": names}})
	})

	mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/collections/")
		parts := strings.Split(path, "/")

		switch {
		case r.Method == http.MethodPut && len(parts) == 1:
			f.mu.Lock()
			f.created = true
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": true})

		case r.Method == http.MethodGet && len(parts) == 1:
			writeJSON(w, map[string]any{"result": map[string]any{
				"points_count": len(f.points),
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{
							"dense":       map[string]any{"size": 4, "distance": "Cosine"},
							"dense_large": map[string]any{"size": 8, "distance": "Cosine"},
						},
					},
				},
			}})

		case len(parts) == 2 && parts[1] == "index":
			writeJSON(w, map[string]any{"result": true})

		case len(parts) >= 2 && parts[1] == "points" && strings.Contains(r.URL.RawQuery, "wait"):
			var body struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			for _, p := range body.Points {
				f.points[p.ID] = p.Payload
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": true})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "search":
			f.mu.Lock()
			var results []map[string]any
			for id, payload := range f.points {
				results = append(results, map[string]any{"id": id, "score": 0.9, "payload": payload})
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": results})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "scroll":
			f.mu.Lock()
			var results []map[string]any
			for id, payload := range f.points {
				results = append(results, map[string]any{"id": id, "payload": payload})
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": map[string]any{"points": results, "next_page_offset": nil}})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "count":
			f.mu.Lock()
			n := len(f.points)
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": map[string]any{"count": n}})

		case len(parts) == 2 && parts[1] == "points":
			var body struct {
				IDs []string `json:"ids"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			var results []map[string]any
			for _, id := range body.IDs {
				if payload, ok := f.points[id]; ok {
					results = append(results, map[string]any{"id": id, "payload": payload})
				}
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": results})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "delete":
			var body struct {
				Points []string `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			for _, id := range body.Points {
				delete(f.points, id)
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": true})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "payload":
			writeJSON(w, map[string]any{"result": true})

		default:
			http.NotFound(w, r)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// stubProvider is a deterministic embedding.Provider double: every
// text maps to a fixed-value vector in each space, so tests never
// need a real model or network call.
type stubProvider struct {
	calls int
}

func (p *stubProvider) ModelID() string { return "stub-model" }
func (p *stubProvider) SmallDims() int  { return 4 }
func (p *stubProvider) LargeDims() int  { return 8 }

func (p *stubProvider) Embed(ctx context.Context, text string) (embedding.Pair, error) {
	p.calls++
	return embedding.Pair{
		Small: []float32{0.1, 0.2, 0.3, 0.4},
		Large: make([]float32, 8),
	}, nil
}

func newTestOrchestrator(t *testing.T, fi *fakeIndex) (*memtool.Orchestrator, *stubProvider) {
	t.Helper()
	srv := httptest.NewServer(fi.handler())
	t.Cleanup(srv.Close)

	client := vectorindex.NewClient(srv.URL, "", time.Second)
	controller := vectorindex.NewController(client, vectorindex.CollectionConfig{Name: "mcp-memory", SmallDims: 4, LargeDims: 8})

	provider := &stubProvider{}
	engine := embedding.NewEngine(provider, 1000)

	orch := memtool.New(memtool.Options{
		Scanner:    secrets.NewScanner(0),
		Resolver:   workspace.New("default", 0),
		Engine:     engine,
		Controller: controller,
	})
	return orch, provider
}

func TestStoreBlocksSecretsWithoutTouchingIndex(t *testing.T) {
	fi := newFakeIndex()
	orch, _ := newTestOrchestrator(t, fi)

	env := orch.Store(context.Background(), memtool.StoreInput{
		Content: "key=sk-" + strings.Repeat("a", 48),
	})

	gt.False(t, env.Success)
	gt.Equal(t, env.ErrorType, model.ErrorTypeValidation)

	fi.mu.Lock()
	defer fi.mu.Unlock()
	gt.Equal(t, fi.requests, 0)
}

func TestStoreEpisodicDefaultsTo90DayExpiry(t *testing.T) {
	fi := newFakeIndex()
	orch, _ := newTestOrchestrator(t, fi)

	env := orch.Store(context.Background(), memtool.StoreInput{
		Content:  "remember this for a while",
		Metadata: map[string]any{"memory_type": "episodic"},
	})
	gt.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	gt.True(t, ok)
	id, _ := data["id"].(string)
	gt.NotEqual(t, id, "")

	fi.mu.Lock()
	payload, ok := fi.points[id]
	fi.mu.Unlock()
	gt.True(t, ok)

	expiresRaw, _ := payload["expires_at"].(string)
	expiresAt, err := time.Parse(time.RFC3339, expiresRaw)
	gt.NoError(t, err)

	delta := time.Until(expiresAt) - 90*24*time.Hour
	if delta < 0 {
		delta = -delta
	}
	gt.True(t, delta < time.Hour)
}

func TestStoreChunksLongContentSharingGroupID(t *testing.T) {
	fi := newFakeIndex()
	orch, _ := newTestOrchestrator(t, fi)
	orch.ChunkThreshold = 50
	orch.ChunkOptions.ChunkSize = 40
	orch.ChunkOptions.Overlap = 5

	env := orch.Store(context.Background(), memtool.StoreInput{
		Content: strings.Repeat("the quick brown fox jumps over the lazy dog. ", 5),
	})
	gt.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	gt.True(t, ok)
	groupID, _ := data["chunk_group_id"].(string)
	gt.NotEqual(t, groupID, "")

	ids, ok := data["ids"].([]string)
	gt.True(t, ok)
	gt.A(t, ids).Longer(1)

	fi.mu.Lock()
	defer fi.mu.Unlock()
	for i, id := range ids {
		payload, ok := fi.points[id]
		gt.True(t, ok)
		gt.Equal(t, payload["chunk_group_id"].(string), groupID)
		idx, _ := payload["chunk_index"].(float64)
		gt.Equal(t, int(idx), i)
		total, _ := payload["total_chunks"].(float64)
		gt.Equal(t, int(total), len(ids))
	}
}

func TestScanAdmitsLuhnFailingDigitString(t *testing.T) {
	scanner := secrets.NewScanner(0)
	result, err := scanner.Scan("reference number: 1234567890123456")
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionAdmit)
}

func TestUpdateRefusesChunkMember(t *testing.T) {
	fi := newFakeIndex()
	orch, _ := newTestOrchestrator(t, fi)
	orch.ChunkThreshold = 50
	orch.ChunkOptions.ChunkSize = 40
	orch.ChunkOptions.Overlap = 5

	storeEnv := orch.Store(context.Background(), memtool.StoreInput{
		Content: strings.Repeat("the quick brown fox jumps over the lazy dog. ", 5),
	})
	gt.True(t, storeEnv.Success)
	data := storeEnv.Data.(map[string]any)
	ids := data["ids"].([]string)

	updateEnv := orch.Update(context.Background(), memtool.UpdateInput{
		ID:      ids[0],
		Content: strPtr("new content"),
		Reindex: true,
	})
	gt.False(t, updateEnv.Success)
	gt.Equal(t, updateEnv.ErrorType, model.ErrorTypeValidation)
}

func strPtr(s string) *string { return &s }
