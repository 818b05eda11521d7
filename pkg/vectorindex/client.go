package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrIndexRequest wraps a failed call to the vector-store REST API.
// No Qdrant Go client exists anywhere in the reference corpus, so
// this is a minimal hand-written net/http client, grounded on the
// request/response/error-wrap shape of the teacher's
// pkg/tool/otx.queryAPI and rcliao-agent-memory's OpenAIEmbedder.Embed.
var ErrIndexRequest = goerr.New("vector index request failed")

// Client is a minimal REST client for a Qdrant-shaped vector index:
// named-vector collections, point upsert/search/delete, and payload
// filtering over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (e.g. http://localhost:6333).
func NewClient(baseURL, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do issues method+path with an optional JSON body, decoding the JSON
// response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("api-key", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(ErrIndexRequest, "request failed", goerr.V("path", path), goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return goerr.Wrap(ErrIndexRequest, "non-2xx response",
			goerr.V("path", path), goerr.V("status", resp.StatusCode), goerr.V("body", string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}

// --- collection lifecycle ---

type listCollectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

// ListCollections returns the names of collections known to the index.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp listCollectionsResponse
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
	OnDisk   bool   `json:"on_disk"`
}

type quantizationConfig struct {
	Scalar struct {
		Type      string  `json:"type"`
		Quantile  float64 `json:"quantile"`
		AlwaysRAM bool    `json:"always_ram"`
	} `json:"scalar"`
}

type createCollectionRequest struct {
	Vectors            map[string]vectorParams `json:"vectors"`
	HNSWConfig         hnswConfig              `json:"hnsw_config"`
	OptimizersConfig   optimizersConfig        `json:"optimizers_config"`
	QuantizationConfig quantizationConfig      `json:"quantization_config"`
}

type hnswConfig struct {
	M                  int `json:"m"`
	EfConstruct        int `json:"ef_construct"`
	FullScanThreshold  int `json:"full_scan_threshold"`
}

type optimizersConfig struct {
	DefaultSegmentNumber int `json:"default_segment_number"`
	MaxSegmentSize       int `json:"max_segment_size"`
	MemmapThreshold      int `json:"memmap_threshold"`
	IndexingThreshold    int `json:"indexing_threshold"`
	FlushIntervalSec     int `json:"flush_interval_sec"`
}

// CreateCollection creates a new collection with the named dense
// vector spaces and the spec's exact HNSW/optimizer/quantization
// configuration (§6).
func (c *Client) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	quant := quantizationConfig{}
	quant.Scalar.Type = "int8"
	quant.Scalar.Quantile = QuantizationQuantile
	quant.Scalar.AlwaysRAM = true

	req := createCollectionRequest{
		Vectors: map[string]vectorParams{
			VectorDense:      {Size: cfg.SmallDims, Distance: "Cosine"},
			VectorDenseLarge: {Size: cfg.LargeDims, Distance: "Cosine"},
		},
		HNSWConfig: hnswConfig{
			M:                 HNSWM,
			EfConstruct:       HNSWEfConstruct,
			FullScanThreshold: HNSWFullScanThreshold,
		},
		OptimizersConfig: optimizersConfig{
			DefaultSegmentNumber: DefaultSegmentNumber,
			MaxSegmentSize:       MaxSegmentSizeKB,
			MemmapThreshold:      MemmapThresholdKB,
			IndexingThreshold:    IndexingThresholdKB,
			FlushIntervalSec:     FlushIntervalSec,
		},
		QuantizationConfig: quant,
	}
	return c.do(ctx, http.MethodPut, "/collections/"+cfg.Name, req, nil)
}

type collectionInfoResponse struct {
	Result struct {
		Status              string `json:"status"`
		OptimizerStatus     any    `json:"optimizer_status"`
		PointsCount         int    `json:"points_count"`
		IndexedVectorsCount int    `json:"indexed_vectors_count"`
		SegmentsCount       int    `json:"segments_count"`
		Config              struct {
			Params struct {
				Vectors map[string]struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
			HNSWConfig       hnswConfig       `json:"hnsw_config"`
			OptimizersConfig optimizersConfig `json:"optimizers_config"`
		} `json:"config"`
	} `json:"result"`
}

// GetCollectionInfo fetches the named-vector schema of an existing
// collection, used by Initialize to validate against the configured
// dimensions.
func (c *Client) GetCollectionInfo(ctx context.Context, name string) (map[string]struct {
	Size     int
	Distance string
}, error) {
	var resp collectionInfoResponse
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]struct {
		Size     int
		Distance string
	}, len(resp.Result.Config.Params.Vectors))
	for name, v := range resp.Result.Config.Params.Vectors {
		out[name] = struct {
			Size     int
			Distance string
		}{Size: v.Size, Distance: v.Distance}
	}
	return out, nil
}

// CollectionStats is the subset of a collection's /collections/{name}
// response surfaced through memory-status (spec §4.4 "Stats").
type CollectionStats struct {
	Status              string
	OptimizerStatus     any
	PointsCount         int
	IndexedVectorsCount int
	SegmentsCount       int
	Config              map[string]any
}

// GetCollectionStats fetches the live point/segment counts and
// optimizer status of a collection.
func (c *Client) GetCollectionStats(ctx context.Context, name string) (CollectionStats, error) {
	var resp collectionInfoResponse
	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp); err != nil {
		return CollectionStats{}, err
	}
	r := resp.Result
	return CollectionStats{
		Status:              r.Status,
		OptimizerStatus:     r.OptimizerStatus,
		PointsCount:         r.PointsCount,
		IndexedVectorsCount: r.IndexedVectorsCount,
		SegmentsCount:       r.SegmentsCount,
		Config: map[string]any{
			"hnsw_m":                 r.Config.HNSWConfig.M,
			"hnsw_ef_construct":      r.Config.HNSWConfig.EfConstruct,
			"default_segment_number": r.Config.OptimizersConfig.DefaultSegmentNumber,
			"indexing_threshold":     r.Config.OptimizersConfig.IndexingThreshold,
		},
	}, nil
}

type createIndexRequest struct {
	FieldName   string      `json:"field_name"`
	FieldSchema interface{} `json:"field_schema"`
}

// CreatePayloadIndex creates a payload index on fieldName of the
// given kind ("keyword", "float", "integer", "datetime") or, for the
// full-text index, a text-tokenizer schema.
func (c *Client) CreatePayloadIndex(ctx context.Context, collection, fieldName, kind string) error {
	var schema any = kind
	if kind == "text" {
		schema = map[string]any{
			"type":       "text",
			"tokenizer":  "word",
			"lowercase":  true,
			"min_token_len": FullTextMinTokenLen,
			"max_token_len": FullTextMaxTokenLen,
		}
	}
	req := createIndexRequest{FieldName: fieldName, FieldSchema: schema}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index", collection), req, nil)
	if err != nil && isAlreadyExists(err) {
		return nil
	}
	return err
}

func isAlreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// --- points ---

// PointUpsert is a single point in a Qdrant-shaped upsert request.
type PointUpsert struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []PointUpsert `json:"points"`
}

// Upsert writes a batch of points, waiting for acknowledgement.
func (c *Client) Upsert(ctx context.Context, collection string, points []PointUpsert) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), upsertRequest{Points: points}, nil)
}

type searchRequest struct {
	Vector      any            `json:"vector"`
	Using       string         `json:"using,omitempty"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset,omitempty"`
	ScoreThresh *float64       `json:"score_threshold,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	WithPayload bool           `json:"with_payload"`
}

// ScoredPoint is a single search hit.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

// Search runs a vector search against the named vector space.
func (c *Client) Search(ctx context.Context, collection, vectorName string, vector []float32, filter map[string]any, limit, offset int, scoreThreshold *float64, ef int) ([]ScoredPoint, error) {
	req := searchRequest{
		Vector:      vector,
		Using:       vectorName,
		Limit:       limit,
		Offset:      offset,
		ScoreThresh: scoreThreshold,
		Filter:      filter,
		WithPayload: true,
		Params: map[string]any{
			"hnsw_ef":      ef,
			"exact":        false,
			"indexed_only": true,
		},
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", collection), req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

type textSearchRequest struct {
	Filter      map[string]any `json:"filter"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
}

// TextSearch performs a full-text match over the content payload
// field (used by hybrid search's text leg).
func (c *Client) TextSearch(ctx context.Context, collection, queryText string, baseFilter map[string]any, limit int) ([]ScoredPoint, error) {
	filter := mergeFullTextFilter(baseFilter, queryText)
	req := textSearchRequest{Filter: filter, Limit: limit, WithPayload: true}

	var resp struct {
		Result struct {
			Points []ScoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", collection), req, &resp); err != nil {
		return nil, err
	}
	return resp.Result.Points, nil
}

func mergeFullTextFilter(base map[string]any, queryText string) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	must, _ := out["must"].([]any)
	must = append(must, map[string]any{
		"key":   "content",
		"match": map[string]any{"text": queryText},
	})
	out["must"] = must
	return out
}

type getPointsRequest struct {
	IDs         []string `json:"ids"`
	WithPayload bool     `json:"with_payload"`
	WithVector  bool     `json:"with_vector"`
}

// GetPoints fetches points by id.
func (c *Client) GetPoints(ctx context.Context, collection string, ids []string) ([]ScoredPoint, error) {
	req := getPointsRequest{IDs: ids, WithPayload: true, WithVector: false}
	var resp struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", collection), req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

type deletePointsRequest struct {
	Points []string `json:"points"`
}

// DeletePoints removes points by id.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []string) error {
	req := deletePointsRequest{Points: ids}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", collection), req, nil)
}

type setPayloadRequest struct {
	Payload map[string]any `json:"payload"`
	Points  []string       `json:"points"`
}

// SetPayload merges fields into a point's payload (used for the
// fire-and-forget access-tracking update and memory-update).
func (c *Client) SetPayload(ctx context.Context, collection string, id string, payload map[string]any) error {
	req := setPayloadRequest{Payload: payload, Points: []string{id}}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/payload", collection), req, nil)
}

type scrollRequest struct {
	Filter      map[string]any `json:"filter,omitempty"`
	Limit       int            `json:"limit"`
	Offset      any            `json:"offset,omitempty"`
	WithPayload bool           `json:"with_payload"`
}

type scrollResponse struct {
	Result struct {
		Points     []ScoredPoint `json:"points"`
		NextOffset any           `json:"next_page_offset"`
	} `json:"result"`
}

// Scroll lists points matching filter, for memory-list's fast path.
func (c *Client) Scroll(ctx context.Context, collection string, filter map[string]any, limit int, offset any) ([]ScoredPoint, any, error) {
	req := scrollRequest{Filter: filter, Limit: limit, Offset: offset, WithPayload: true}
	var resp scrollResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", collection), req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Result.Points, resp.Result.NextOffset, nil
}

type countRequest struct {
	Filter map[string]any `json:"filter,omitempty"`
	Exact  bool           `json:"exact"`
}

type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// Count returns the approximate number of points matching filter
// (spec §4.4: "approximate count against a filter").
func (c *Client) Count(ctx context.Context, collection string, filter map[string]any) (int, error) {
	req := countRequest{Filter: filter, Exact: false}
	var resp countResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", collection), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}
