package vectorindex_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
	"github.com/m-mizutani/gt"
)

// fakeIndex is a minimal in-memory stand-in for the vector store's
// REST API, just enough surface to exercise Controller end to end.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string]bool
	points      map[string]map[string]any
	payloadSets int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{collections: map[string]bool{}, points: map[string]map[string]any{}}
}

// sortedPointIDs returns point ids in a stable order so tests can
// reason about rank. Caller holds f.mu.
func (f *fakeIndex) sortedPointIDs() []string {
	ids := make([]string, 0, len(f.points))
	for id := range f.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeIndex) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/collections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var names []map[string]string
		for name := range f.collections {
			names = append(names, map[string]string{"name": name})
		}
		writeJSON(w, map[string]any{"result": map[string]any{"collections": names}})
	})

	mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/collections/")
		parts := strings.Split(path, "/")
		collection := parts[0]

		switch {
		case r.Method == http.MethodPut && len(parts) == 1:
			f.mu.Lock()
			f.collections[collection] = true
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": true})

		case r.Method == http.MethodGet && len(parts) == 1:
			writeJSON(w, map[string]any{"result": map[string]any{
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

		case len(parts) == 2 && parts[1] == "points" && strings.Contains(r.URL.RawQuery, "wait"):
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
			ids := f.sortedPointIDs()
			var results []map[string]any
			for _, id := range ids {
				results = append(results, map[string]any{"id": id, "score": 0.9, "payload": f.points[id]})
			}
			f.mu.Unlock()
			writeJSON(w, map[string]any{"result": results})

		case len(parts) == 3 && parts[1] == "points" && parts[2] == "scroll":
			var body struct {
				Filter struct {
					Must []map[string]any `json:"must"`
				} `json:"filter"`
			}
			bodyBytes, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(bodyBytes, &body)
			isTextSearch := false
			for _, clause := range body.Filter.Must {
				if clause["key"] == "content" {
					isTextSearch = true
				}
			}

			f.mu.Lock()
			ids := f.sortedPointIDs()
			f.mu.Unlock()
			if isTextSearch {
				// Full-text leg ranks the opposite way round from the
				// dense leg so tests can exercise swapped-rank fusion.
				for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
					ids[i], ids[j] = ids[j], ids[i]
				}
			}

			f.mu.Lock()
			var results []map[string]any
			for _, id := range ids {
				results = append(results, map[string]any{"id": id, "payload": f.points[id]})
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
			f.mu.Lock()
			f.payloadSets++
			f.mu.Unlock()
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

func newTestController(t *testing.T, fi *fakeIndex) *vectorindex.Controller {
	t.Helper()
	srv := httptest.NewServer(fi.handler())
	t.Cleanup(srv.Close)
	client := vectorindex.NewClient(srv.URL, "", time.Second)
	return vectorindex.NewController(client, vectorindex.CollectionConfig{Name: "mcp-memory", SmallDims: 4, LargeDims: 8})
}

func TestControllerInitializeCreatesCollection(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	gt.NoError(t, ctrl.Initialize(context.Background()))
}

func TestControllerInitializeIsIdempotent(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))
	gt.NoError(t, ctrl.Initialize(ctx))
}

func TestControllerUpsertAndGet(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))

	now := time.Now()
	p := &model.Point{
		ID: model.NewMemoryID(), Content: "hello", Workspace: "acme",
		MemoryType: model.MemoryTypeLongTerm, Confidence: 0.7,
		CreatedAt: now, UpdatedAt: now,
		DenseSmall: []float32{0.1, 0.2, 0.3, 0.4},
		DenseLarge: make([]float32, 8),
	}
	gt.NoError(t, ctrl.Upsert(ctx, p))

	got, err := ctrl.Get(ctx, p.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.ID, string(p.ID))
	gt.Equal(t, got.Payload["content"], "hello")
}

func TestControllerGetMissingReturnsNotFound(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))

	_, err := ctrl.Get(ctx, model.NewMemoryID())
	gt.Error(t, err)
}

func TestControllerCountAndList(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))

	now := time.Now()
	for i := 0; i < 3; i++ {
		p := &model.Point{
			ID: model.NewMemoryID(), Content: "x", Workspace: "acme",
			MemoryType: model.MemoryTypeLongTerm, Confidence: 0.5,
			CreatedAt: now, UpdatedAt: now,
			DenseSmall: []float32{0, 0, 0, 0}, DenseLarge: make([]float32, 8),
		}
		gt.NoError(t, ctrl.Upsert(ctx, p))
	}

	n, err := ctrl.Count(ctx, model.SearchFilters{}, false)
	gt.NoError(t, err)
	gt.Equal(t, n, 3)

	results, err := ctrl.List(ctx, vectorindex.ListOptions{Limit: 10})
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
}

func TestControllerDelete(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))

	now := time.Now()
	p := &model.Point{
		ID: model.NewMemoryID(), Content: "x", Workspace: "acme",
		MemoryType: model.MemoryTypeLongTerm, Confidence: 0.5,
		CreatedAt: now, UpdatedAt: now,
		DenseSmall: []float32{0, 0, 0, 0}, DenseLarge: make([]float32, 8),
	}
	gt.NoError(t, ctrl.Upsert(ctx, p))
	gt.NoError(t, ctrl.Delete(ctx, p.ID))

	_, err := ctrl.Get(ctx, p.ID)
	gt.Error(t, err)
}

// TestFuseRRFMatchesSpecScoring covers S4: two points present in both
// ranked lists but at swapped ranks get the symmetric RRF scores
// 1/61+1/62 and 1/62+1/61.
func TestFuseRRFMatchesSpecScoring(t *testing.T) {
	ctrl := newTestController(t, newFakeIndex())
	ctx := context.Background()
	gt.NoError(t, ctrl.Initialize(ctx))

	now := time.Now()
	a := &model.Point{ID: model.NewMemoryID(), Content: "alpha content", Workspace: "acme", MemoryType: model.MemoryTypeLongTerm, Confidence: 0.5, CreatedAt: now, UpdatedAt: now, DenseSmall: []float32{1, 0, 0, 0}, DenseLarge: make([]float32, 8)}
	b := &model.Point{ID: model.NewMemoryID(), Content: "beta content", Workspace: "acme", MemoryType: model.MemoryTypeLongTerm, Confidence: 0.5, CreatedAt: now, UpdatedAt: now, DenseSmall: []float32{0, 1, 0, 0}, DenseLarge: make([]float32, 8)}
	gt.NoError(t, ctrl.Upsert(ctx, a))
	gt.NoError(t, ctrl.Upsert(ctx, b))

	results, err := ctrl.HybridSearch(ctx, "alpha beta", []float32{1, 0, 0, 0}, nil, nil, vectorindex.SearchOptions{Limit: 10})
	gt.NoError(t, err)
	gt.A(t, results).Length(2)

	// Each point ranks first in one leg and second in the other (the
	// fake index reverses text-search order relative to dense-search
	// order), so both fused scores equal 1/61 + 1/62.
	want := 1.0/61 + 1.0/62
	gt.Equal(t, results[0].Score, want)
	gt.Equal(t, results[1].Score, want)
}
