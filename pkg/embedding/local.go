package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// LocalConfig configures the local CPU embedding provider.
type LocalConfig struct {
	ModelID   string
	Dims      int
	CacheDir  string
}

// DefaultLocalConfig matches the spec's configured local-provider
// defaults.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		ModelID:  "Xenova/all-MiniLM-L6-v2",
		Dims:     384,
		CacheDir: "",
	}
}

// LocalProvider runs CPU feature-extraction over text, producing a
// single vector reused for both the small and large slots (spec
// §4.3: "cost is zero... a single vector reused for both"). The
// actual tensor pipeline is load-bearing only under the `onnx` build
// tag (see local_onnx.go); without it, backend falls back to a
// deterministic hash-based vector so the service still runs on hosts
// without the native ONNX Runtime library installed.
type LocalProvider struct {
	cfg     LocalConfig
	backend localBackend

	once sync.Once
	err  error
}

type localBackend interface {
	embed(ctx context.Context, text string, dims int) ([]float32, error)
}

// NewLocalProvider constructs a LocalProvider. Backend loading is
// lazy: the model is not touched until the first Embed call (spec
// §4.3: "on the first call... caching the loaded model").
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.Dims == 0 {
		cfg.Dims = 384
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "Xenova/all-MiniLM-L6-v2"
	}
	return &LocalProvider{cfg: cfg}
}

func (p *LocalProvider) ModelID() string { return p.cfg.ModelID }
func (p *LocalProvider) SmallDims() int  { return p.cfg.Dims }
func (p *LocalProvider) LargeDims() int  { return p.cfg.Dims }

func (p *LocalProvider) Embed(ctx context.Context, text string) (Pair, error) {
	p.once.Do(func() {
		p.backend, p.err = newLocalBackend(p.cfg)
	})
	if p.err != nil {
		return Pair{}, p.err
	}

	vec, err := p.backend.embed(ctx, text, p.cfg.Dims)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Small: vec, Large: vec}, nil
}

// hashBackend is the non-onnx fallback: a deterministic hash-seeded,
// L2-normalized vector, grounded on the corpus's own MockEmbedder
// (becomeliminal-nim-go-sdk/memory/embedder/mock). It keeps the
// service usable (and its tests deterministic) on hosts without the
// ONNX Runtime shared library.
type hashBackend struct{}

func (hashBackend) embed(ctx context.Context, text string, dims int) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return l2Normalize(vec), nil
}

func l2Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
