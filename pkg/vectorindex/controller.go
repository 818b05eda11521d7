// Package vectorindex implements the vector index controller (C4):
// collection lifecycle, chunked upsert, standard and hybrid (RRF)
// search, best-effort access tracking, and payload-filtered
// list/count/delete over the hand-written REST client in client.go.
package vectorindex

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/kodaiva/mcp-memory/pkg/utils/logging"
	"github.com/kodaiva/mcp-memory/pkg/utils/ratelimit"
)

// ErrSchemaMismatch is returned when an existing collection's named
// vectors don't match the configured dimensions (spec §4.4, S6).
var ErrSchemaMismatch = goerr.New("collection schema mismatch")

// RRFK is the Reciprocal Rank Fusion constant used by hybrid search
// (spec testable property #6).
const RRFK = 60

// UpsertBatchSize is the chunk size BatchUpsert writes in (spec §4.4).
const UpsertBatchSize = 500

// Controller owns the collection lifecycle and all point-level
// operations against a single named collection.
type Controller struct {
	client *Client
	cfg    CollectionConfig

	initOnce sync.Once
	initErr  error

	accessGate *ratelimit.Gate

	mu                   sync.Mutex
	accessTrackFailures  int64
}

// NewController builds a Controller for the given collection config.
func NewController(client *Client, cfg CollectionConfig) *Controller {
	return &Controller{
		client:     client,
		cfg:        cfg,
		accessGate: ratelimit.NewGate(10 * time.Second),
	}
}

// Initialize runs create-or-validate exactly once per process, shared
// by all concurrent callers via sync.Once (spec §5: "the collection
// initializer... must run at most once").
func (c *Controller) Initialize(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.initialize(ctx)
	})
	return c.initErr
}

func (c *Controller) initialize(ctx context.Context) error {
	logger := logging.From(ctx)

	names, err := c.client.ListCollections(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list collections")
	}

	exists := false
	for _, n := range names {
		if n == c.cfg.Name {
			exists = true
			break
		}
	}

	if !exists {
		logger.Info("creating collection", "name", c.cfg.Name)
		if err := c.client.CreateCollection(ctx, c.cfg); err != nil {
			return goerr.Wrap(err, "failed to create collection", goerr.V("name", c.cfg.Name))
		}
	} else {
		if err := c.validateSchema(ctx); err != nil {
			return err
		}
	}

	for field, kind := range PayloadIndexes {
		if err := c.client.CreatePayloadIndex(ctx, c.cfg.Name, field, kind); err != nil {
			return goerr.Wrap(err, "failed to create payload index", goerr.V("field", field))
		}
	}
	if err := c.client.CreatePayloadIndex(ctx, c.cfg.Name, "content", "text"); err != nil {
		return goerr.Wrap(err, "failed to create full-text index")
	}

	return nil
}

func (c *Controller) validateSchema(ctx context.Context) error {
	info, err := c.client.GetCollectionInfo(ctx, c.cfg.Name)
	if err != nil {
		return goerr.Wrap(err, "failed to inspect collection", goerr.V("name", c.cfg.Name))
	}

	var mismatches []string
	dense, ok := info[VectorDense]
	if !ok {
		mismatches = append(mismatches, "missing named vector 'dense' (collection may use a single unnamed vector)")
	} else if dense.Size != c.cfg.SmallDims || dense.Distance != "Cosine" {
		mismatches = append(mismatches, "dense: expected size="+strconv.Itoa(c.cfg.SmallDims)+" distance=Cosine, got size="+strconv.Itoa(dense.Size)+" distance="+dense.Distance)
	}

	large, ok := info[VectorDenseLarge]
	if !ok {
		mismatches = append(mismatches, "missing named vector 'dense_large'")
	} else if large.Size != c.cfg.LargeDims || large.Distance != "Cosine" {
		mismatches = append(mismatches, "dense_large: expected size="+strconv.Itoa(c.cfg.LargeDims)+" distance=Cosine, got size="+strconv.Itoa(large.Size)+" distance="+large.Distance)
	}

	if len(mismatches) > 0 {
		return goerr.Wrap(ErrSchemaMismatch,
			"collection exists with an incompatible schema; delete the collection or rename the configured collection name",
			goerr.V("collection", c.cfg.Name), goerr.V("discrepancies", mismatches))
	}
	return nil
}

func pointPayload(p *model.Point) map[string]any {
	payload := map[string]any{
		"content":      p.Content,
		"workspace":    p.Workspace,
		"memory_type":  string(p.MemoryType),
		"confidence":   p.Confidence,
		"tags":         p.Tags,
		"created_at":   p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   p.UpdatedAt.UTC().Format(time.RFC3339),
		"access_count": p.AccessCount,
	}
	if p.ExpiresAt != nil {
		payload["expires_at"] = p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if p.LastAccessedAt != nil {
		payload["last_accessed_at"] = p.LastAccessedAt.UTC().Format(time.RFC3339)
	}
	if p.IsChunkMember() {
		payload["chunk_index"] = *p.ChunkIndex
		payload["total_chunks"] = *p.TotalChunks
		payload["chunk_group_id"] = p.ChunkGroupID
	}
	for k, v := range p.Extra {
		payload[k] = v
	}
	return payload
}

// Upsert writes a single Memory Point with both vector spaces.
func (c *Controller) Upsert(ctx context.Context, p *model.Point) error {
	return c.BatchUpsert(ctx, []*model.Point{p})
}

// BatchUpsert writes points in batches of UpsertBatchSize, each batch
// committed atomically; failed batches are reported with the ids they
// contained (spec §4.4).
func (c *Controller) BatchUpsert(ctx context.Context, points []*model.Point) error {
	for start := 0; start < len(points); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		req := make([]PointUpsert, len(batch))
		ids := make([]string, len(batch))
		for i, p := range batch {
			req[i] = PointUpsert{
				ID: string(p.ID),
				Vector: map[string]any{
					VectorDense:      p.DenseSmall,
					VectorDenseLarge: p.DenseLarge,
				},
				Payload: pointPayload(p),
			}
			ids[i] = string(p.ID)
		}

		if err := c.client.Upsert(ctx, c.cfg.Name, req); err != nil {
			return goerr.Wrap(err, "batch upsert failed", goerr.V("failed_ids", ids))
		}
	}
	return nil
}

// SearchOptions configures a standard or hybrid search.
type SearchOptions struct {
	Filter         model.SearchFilters
	Limit          int
	Offset         int
	ScoreThreshold *float64
	HNSWEf         int
	ExcludeExpired bool
}

// Search runs a standard vector search. When largeVector is non-nil,
// the dense_large space is searched; otherwise dense.
func (c *Controller) Search(ctx context.Context, smallVector, largeVector []float32, opts SearchOptions) ([]ScoredPoint, error) {
	ef := opts.HNSWEf
	if ef == 0 {
		ef = DefaultSearchEf
	}
	filter := BuildFilter(opts.Filter, opts.ExcludeExpired, time.Now())

	vectorName := VectorDense
	vector := smallVector
	if largeVector != nil {
		vectorName = VectorDenseLarge
		vector = largeVector
	}

	results, err := c.client.Search(ctx, c.cfg.Name, vectorName, vector, filter, opts.Limit, opts.Offset, opts.ScoreThreshold, ef)
	if err != nil {
		return nil, goerr.Wrap(err, "search failed")
	}

	c.trackAccess(ctx, results)
	return results, nil
}

// HybridSearch fuses a dense vector search with a full-text search
// over content via Reciprocal Rank Fusion (spec §4.4, testable
// property #6). hybridAlpha is accepted for API compatibility but
// unused — RRF is symmetric (spec's documented open question).
func (c *Controller) HybridSearch(ctx context.Context, queryText string, smallVector, largeVector []float32, hybridAlpha *float64, opts SearchOptions) ([]ScoredPoint, error) {
	_ = hybridAlpha

	ef := opts.HNSWEf
	if ef == 0 {
		ef = DefaultSearchEf
	}
	filter := BuildFilter(opts.Filter, opts.ExcludeExpired, time.Now())

	vectorName := VectorDense
	vector := smallVector
	if largeVector != nil {
		vectorName = VectorDenseLarge
		vector = largeVector
	}

	fetchLimit := 3 * opts.Limit
	if fetchLimit < opts.Limit+opts.Offset {
		fetchLimit = opts.Limit + opts.Offset
	}

	denseResults, err := c.client.Search(ctx, c.cfg.Name, vectorName, vector, filter, fetchLimit, 0, opts.ScoreThreshold, ef)
	if err != nil {
		return nil, goerr.Wrap(err, "hybrid dense search failed")
	}
	textResults, err := c.client.TextSearch(ctx, c.cfg.Name, queryText, filter, fetchLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "hybrid text search failed")
	}

	fused := fuseRRF(denseResults, textResults)

	if opts.Offset < len(fused) {
		fused = fused[opts.Offset:]
	} else {
		fused = nil
	}
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	c.trackAccess(ctx, fused)
	return fused, nil
}

// fuseRRF combines two ranked result lists by Reciprocal Rank Fusion:
// score(id) = sum over lists containing id of 1/(k+rank), rank 1-based
// within each list (so the top hit gets 1/(k+1)).
func fuseRRF(dense, text []ScoredPoint) []ScoredPoint {
	scores := map[string]float64{}
	payloads := map[string]map[string]any{}
	order := []string{}

	add := func(results []ScoredPoint) {
		for rank, r := range results {
			if _, seen := scores[r.ID]; !seen {
				order = append(order, r.ID)
				payloads[r.ID] = r.Payload
			}
			scores[r.ID] += 1.0 / float64(RRFK+rank+1)
		}
	}
	add(dense)
	add(text)

	out := make([]ScoredPoint, 0, len(order))
	for _, id := range order {
		out = append(out, ScoredPoint{ID: id, Score: scores[id], Payload: payloads[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// trackAccess fires a best-effort, asynchronous payload update
// bumping access_count/last_accessed_at for each returned point,
// using the access_count already present in the result's payload as
// the read half of the read-modify-write (spec §4.4: "retrieve the
// returned ids' current access_count, set... old+1"). Concurrent
// callers racing on the same id can undercount; that is accepted
// (spec §5/§9). A single rate-limited warning is logged per gate
// window on failure.
func (c *Controller) trackAccess(ctx context.Context, results []ScoredPoint) {
	logger := logging.From(ctx)
	for _, r := range results {
		current, _ := toFloat(r.Payload["access_count"])
		go func(id string, next int) {
			bg := context.Background()
			err := c.client.SetPayload(bg, c.cfg.Name, id, map[string]any{
				"access_count":     next,
				"last_accessed_at": time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				c.mu.Lock()
				c.accessTrackFailures++
				c.mu.Unlock()
				if c.accessGate.Allow(time.Now()) {
					logger.Warn("access tracking update failed", "id", id, "error", err)
				}
			}
		}(r.ID, int(current)+1)
	}
}

// Get fetches a single point by id. Returns model.ErrNotFound if
// absent. Fire-and-forget access tracking runs on a hit, per spec
// §4.4 ("get also fire-and-forgets access tracking").
func (c *Controller) Get(ctx context.Context, id model.MemoryID) (*ScoredPoint, error) {
	points, err := c.client.GetPoints(ctx, c.cfg.Name, []string{string(id)})
	if err != nil {
		return nil, goerr.Wrap(err, "get failed", goerr.V("id", id))
	}
	if len(points) == 0 {
		return nil, model.ErrNotFound
	}
	c.trackAccess(ctx, points[:1])
	return &points[0], nil
}

// Delete removes a single point.
func (c *Controller) Delete(ctx context.Context, id model.MemoryID) error {
	return c.BatchDelete(ctx, []model.MemoryID{id})
}

// BatchDelete removes multiple points in one call.
func (c *Controller) BatchDelete(ctx context.Context, ids []model.MemoryID) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = string(id)
	}
	if err := c.client.DeletePoints(ctx, c.cfg.Name, strs); err != nil {
		return goerr.Wrap(err, "batch delete failed", goerr.V("ids", strs))
	}
	return nil
}

// UpdatePayload merges new payload fields into an existing point,
// without touching its vectors. updated_at is always overwritten with
// now regardless of what the caller supplied (spec §4.4).
func (c *Controller) UpdatePayload(ctx context.Context, id model.MemoryID, payload map[string]any) error {
	merged := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	merged["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	if err := c.client.SetPayload(ctx, c.cfg.Name, string(id), merged); err != nil {
		return goerr.Wrap(err, "update payload failed", goerr.V("id", id))
	}
	return nil
}

// ListHardCap is the most rows the slow List path fetches and sorts in
// memory. The created_at-desc fast path pages only to offset+limit and
// is not capped.
const ListHardCap = 10_000

// ListOptions configures List.
type ListOptions struct {
	Filter         model.SearchFilters
	Limit          int
	Offset         int
	SortBy         string
	SortOrder      string
	ExcludeExpired bool
}

// List returns matching points sorted by the requested field (spec
// §4.4: "fast/slow sort paths"). created_at-desc — the default — is
// the index's natural scroll order, so it's served by a fast path
// that only pages as far as offset+limit. Any other sort field, or an
// explicit ascending request on created_at, requires the full
// matching set in memory first (slow path).
func (c *Controller) List(ctx context.Context, opts ListOptions) ([]ScoredPoint, error) {
	filter := BuildFilter(opts.Filter, opts.ExcludeExpired, time.Now())

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := opts.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}

	if sortBy == "created_at" && sortOrder == "desc" {
		return c.listFastPath(ctx, filter, opts)
	}
	return c.listSlowPath(ctx, filter, sortBy, sortOrder, opts)
}

// listFastPath pages just far enough to cover offset+limit, trusting
// the index's natural scroll order to already be created_at desc — no
// full-set fetch, no in-memory sort, no hard cap to hit.
func (c *Controller) listFastPath(ctx context.Context, filter map[string]any, opts ListOptions) ([]ScoredPoint, error) {
	need := opts.Offset + opts.Limit

	var all []ScoredPoint
	var offset any
	for len(all) < need {
		batch, next, err := c.client.Scroll(ctx, c.cfg.Name, filter, 500, offset)
		if err != nil {
			return nil, goerr.Wrap(err, "list failed")
		}
		all = append(all, batch...)
		if next == nil || len(batch) == 0 {
			break
		}
		offset = next
	}

	start := opts.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// listSlowPath fetches up to ListHardCap matching points and sorts
// them in-memory by the requested field.
func (c *Controller) listSlowPath(ctx context.Context, filter map[string]any, sortBy, sortOrder string, opts ListOptions) ([]ScoredPoint, error) {
	var all []ScoredPoint
	var offset any
	capped := false
	for len(all) < ListHardCap {
		batch, next, err := c.client.Scroll(ctx, c.cfg.Name, filter, 500, offset)
		if err != nil {
			return nil, goerr.Wrap(err, "list failed")
		}
		all = append(all, batch...)
		if next == nil || len(batch) == 0 {
			break
		}
		offset = next
		if len(all) >= ListHardCap {
			capped = true
		}
	}
	if len(all) > ListHardCap {
		all = all[:ListHardCap]
		capped = true
	}
	if capped {
		// Performance guardrail, not a semantic guarantee (spec §9
		// "Sorting cap"): violations are logged, not errored.
		logging.From(ctx).Warn("list result set exceeded the in-memory sort cap",
			"cap", ListHardCap, "sort_by", sortBy)
	}

	sortPoints(all, sortBy, sortOrder)

	start := opts.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func sortPoints(points []ScoredPoint, sortBy, sortOrder string) {
	if sortBy == "" {
		sortBy = "created_at"
	}
	asc := sortOrder == "asc"

	less := func(i, j int) bool {
		var a, b float64
		switch sortBy {
		case "access_count":
			a, _ = toFloat(points[i].Payload["access_count"])
			b, _ = toFloat(points[j].Payload["access_count"])
		case "confidence":
			a, _ = toFloat(points[i].Payload["confidence"])
			b, _ = toFloat(points[j].Payload["confidence"])
		case "updated_at":
			return compareTimeStrings(points[i].Payload["updated_at"], points[j].Payload["updated_at"], asc)
		default: // created_at
			return compareTimeStrings(points[i].Payload["created_at"], points[j].Payload["created_at"], asc)
		}
		if asc {
			return a < b
		}
		return a > b
	}
	sort.SliceStable(points, less)
}

func compareTimeStrings(a, b any, asc bool) bool {
	as, _ := a.(string)
	bs, _ := b.(string)
	if asc {
		return as < bs
	}
	return as > bs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Count returns the number of points matching filter.
func (c *Controller) Count(ctx context.Context, filter model.SearchFilters, excludeExpired bool) (int, error) {
	n, err := c.client.Count(ctx, c.cfg.Name, BuildFilter(filter, excludeExpired, time.Now()))
	if err != nil {
		return 0, goerr.Wrap(err, "count failed")
	}
	return n, nil
}

// Stats reports controller-owned cumulative counters for
// memory-status.
type Stats struct {
	AccessTrackFailures int64 `json:"access_track_failures"`
}

// Stats returns the controller's own accumulated counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{AccessTrackFailures: c.accessTrackFailures}
}

// CollectionStats fetches the live collection stats (points_count,
// indexed_vectors_count, segments_count, status, optimizer_status,
// config) for memory-status.
func (c *Controller) CollectionStats(ctx context.Context) (CollectionStats, error) {
	stats, err := c.client.GetCollectionStats(ctx, c.cfg.Name)
	if err != nil {
		return CollectionStats{}, goerr.Wrap(err, "failed to fetch collection stats")
	}
	return stats, nil
}
