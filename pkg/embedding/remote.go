package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/kodaiva/mcp-memory/pkg/retry"
)

// RemoteConfig configures the remote embedding provider.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	SmallModel string
	LargeModel string
	SmallDims  int
	LargeDims  int
	// CostPerMillionSmall/Large are provider-specific list prices used
	// for the cost-accounting figures surfaced by memory-status.
	CostPerMillionSmall float64
	CostPerMillionLarge float64
	HTTPClient          *http.Client
	RetryOptions        retry.Options
}

// DefaultRemoteConfig returns sane defaults (OpenAI-compatible small
// model + the spec's configured large dimension).
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		BaseURL:             "https://api.openai.com/v1",
		SmallModel:          "text-embedding-3-small",
		LargeModel:          "text-embedding-3-large",
		SmallDims:           384,
		LargeDims:           3072,
		CostPerMillionSmall: 0.02,
		CostPerMillionLarge: 0.13,
		HTTPClient:          &http.Client{Timeout: 30 * time.Second},
		RetryOptions:        retry.DefaultOptions(),
	}
}

// ErrRemoteEmbedding wraps transport/decode failures from the remote
// embedding API.
var ErrRemoteEmbedding = goerr.New("remote embedding request failed")

// RemoteProvider calls an external, OpenAI-compatible embedding API
// for both the small and large vector spaces concurrently, tracking
// cumulative token and cost usage. Grounded on rcliao-agent-memory's
// OpenAIEmbedder, generalized to dual models and wrapped in C7 retry.
type RemoteProvider struct {
	cfg RemoteConfig

	mu          sync.Mutex
	tokensUsed  int64
	costCents   float64
}

// NewRemoteProvider constructs a RemoteProvider.
func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteProvider{cfg: cfg}
}

func (p *RemoteProvider) ModelID() string { return p.cfg.SmallModel + "+" + p.cfg.LargeModel }
func (p *RemoteProvider) SmallDims() int  { return p.cfg.SmallDims }
func (p *RemoteProvider) LargeDims() int  { return p.cfg.LargeDims }

// Usage reports cumulative token and dollar usage for memory-status.
type Usage struct {
	Tokens  int64   `json:"tokens"`
	CostUSD float64 `json:"estimated_cost_usd"`
}

// Usage returns the provider's cumulative usage counters.
func (p *RemoteProvider) Usage() Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Usage{Tokens: p.tokensUsed, CostUSD: p.costCents}
}

type embedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Embed fetches the small and large vectors concurrently, retrying
// each independently under the spec's retry policy.
func (p *RemoteProvider) Embed(ctx context.Context, text string) (Pair, error) {
	var small, large []float32
	var smallTokens, largeTokens int64
	var smallErr, largeErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		small, smallTokens, smallErr = p.fetch(ctx, p.cfg.SmallModel, p.cfg.SmallDims, text)
	}()
	go func() {
		defer wg.Done()
		large, largeTokens, largeErr = p.fetch(ctx, p.cfg.LargeModel, p.cfg.LargeDims, text)
	}()
	wg.Wait()

	if smallErr != nil {
		return Pair{}, smallErr
	}
	if largeErr != nil {
		return Pair{}, largeErr
	}

	p.recordUsage(smallTokens, largeTokens)
	return Pair{Small: small, Large: large}, nil
}

func (p *RemoteProvider) recordUsage(smallTokens, largeTokens int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokensUsed += smallTokens + largeTokens
	p.costCents += float64(smallTokens) / 1_000_000 * p.cfg.CostPerMillionSmall
	p.costCents += float64(largeTokens) / 1_000_000 * p.cfg.CostPerMillionLarge
}

func (p *RemoteProvider) fetch(ctx context.Context, model string, dims int, text string) ([]float32, int64, error) {
	var vec []float32
	var tokens int64

	err := retry.With(ctx, p.cfg.RetryOptions, func(ctx context.Context) error {
		v, t, err := p.doRequest(ctx, model, dims, text)
		if err != nil {
			return err
		}
		vec, tokens = v, t
		return nil
	})
	if err != nil {
		return nil, 0, goerr.Wrap(ErrRemoteEmbedding, "embedding call failed", goerr.V("model", model))
	}
	return vec, tokens, nil
}

func (p *RemoteProvider) doRequest(ctx context.Context, model string, dims int, text string) ([]float32, int64, error) {
	body, err := json.Marshal(embedRequest{Input: text, Model: model, Dimensions: dims})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		// net.Error/net.OpError classification in retry.isRetryable
		// covers the connection-reset/timeout/refused cases.
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, 0, &retry.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("embedding API returned %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, err
	}
	if len(result.Data) == 0 {
		return nil, 0, errors.New("embedding API returned no data")
	}
	return result.Data[0].Embedding, result.Usage.TotalTokens, nil
}
