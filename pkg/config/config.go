// Package config defines the CLI flags and environment variables that
// configure the server (spec §6 "replaceable collaborators"),
// following the teacher's pkg/cli/config.go destination-flag pattern.
package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
)

// Config holds every flag/env-derived configuration value needed to
// construct the server's collaborators.
type Config struct {
	// Vector index (C4)
	IndexURL        string
	IndexAuthToken  string
	CollectionName  string
	IndexTimeoutMS  int

	// Embedding engine (C3)
	EmbeddingProvider string
	RemoteAPIKey      string
	RemoteBaseURL     string
	LocalModelID      string
	LocalDims         int
	LargeDims         int
	LocalModelCache   string
	EmbeddingCacheCap int

	// Chunker (C5)
	ChunkSize      int
	ChunkOverlap   int
	ChunkThreshold int

	// Workspace resolver (C2)
	WorkspaceDefault  string
	WorkspaceCacheTTL time.Duration

	// Secret scanner (C1)
	SecretsMediumThreshold int

	// Ambient
	LogLevel string
}

// Flags returns the cli.Flag set with Destination pointers into cfg,
// mirroring the teacher's globalFlags/llmFlags split.
func Flags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "index-url",
			Usage:       "Vector index base URL",
			Value:       "http://localhost:6333",
			Sources:     cli.EnvVars("MCP_MEMORY_INDEX_URL"),
			Destination: &cfg.IndexURL,
		},
		&cli.StringFlag{
			Name:        "index-auth-token",
			Usage:       "Vector index API key (min 8 chars if set)",
			Sources:     cli.EnvVars("MCP_MEMORY_INDEX_AUTH_TOKEN"),
			Destination: &cfg.IndexAuthToken,
		},
		&cli.StringFlag{
			Name:        "collection-name",
			Usage:       "Vector index collection name",
			Value:       "mcp-memory",
			Sources:     cli.EnvVars("MCP_MEMORY_COLLECTION_NAME"),
			Destination: &cfg.CollectionName,
		},
		&cli.IntFlag{
			Name:    "index-timeout-ms",
			Usage:   "Vector index request timeout in milliseconds",
			Value:   30_000,
			Sources: cli.EnvVars("MCP_MEMORY_INDEX_TIMEOUT_MS"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.IndexTimeoutMS = int(v)
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider: auto, remote, or local",
			Value:       "auto",
			Sources:     cli.EnvVars("MCP_MEMORY_EMBEDDING_PROVIDER"),
			Destination: &cfg.EmbeddingProvider,
		},
		&cli.StringFlag{
			Name:        "remote-embedding-api-key",
			Usage:       "API key for the remote embedding provider",
			Sources:     cli.EnvVars("MCP_MEMORY_REMOTE_EMBEDDING_API_KEY", "OPENAI_API_KEY"),
			Destination: &cfg.RemoteAPIKey,
		},
		&cli.StringFlag{
			Name:        "remote-embedding-base-url",
			Usage:       "Base URL for the remote embedding provider",
			Value:       "https://api.openai.com/v1",
			Sources:     cli.EnvVars("MCP_MEMORY_REMOTE_EMBEDDING_BASE_URL"),
			Destination: &cfg.RemoteBaseURL,
		},
		&cli.StringFlag{
			Name:        "local-model-id",
			Usage:       "Local embedding model id",
			Value:       "Xenova/all-MiniLM-L6-v2",
			Sources:     cli.EnvVars("MCP_MEMORY_LOCAL_MODEL_ID"),
			Destination: &cfg.LocalModelID,
		},
		&cli.IntFlag{
			Name:    "local-dims",
			Usage:   "Local embedding model dimension",
			Value:   384,
			Sources: cli.EnvVars("MCP_MEMORY_LOCAL_DIMS"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.LocalDims = int(v)
				return nil
			},
		},
		&cli.IntFlag{
			Name:    "large-dims",
			Usage:   "Remote large-vector dimension",
			Value:   3072,
			Sources: cli.EnvVars("MCP_MEMORY_LARGE_DIMS"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.LargeDims = int(v)
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "local-model-cache-dir",
			Usage:       "Directory where the local ONNX model is cached",
			Sources:     cli.EnvVars("MCP_MEMORY_LOCAL_MODEL_CACHE_DIR"),
			Destination: &cfg.LocalModelCache,
		},
		&cli.IntFlag{
			Name:    "embedding-cache-capacity",
			Usage:   "Maximum entries in the embedding LRU cache",
			Value:   10_000,
			Sources: cli.EnvVars("MCP_MEMORY_EMBEDDING_CACHE_CAPACITY"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.EmbeddingCacheCap = int(v)
				return nil
			},
		},
		&cli.IntFlag{
			Name:    "chunk-size",
			Usage:   "Chunk window size in characters",
			Value:   1000,
			Sources: cli.EnvVars("MCP_MEMORY_CHUNK_SIZE"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.ChunkSize = int(v)
				return nil
			},
		},
		&cli.IntFlag{
			Name:    "chunk-overlap",
			Usage:   "Chunk window overlap in characters",
			Value:   200,
			Sources: cli.EnvVars("MCP_MEMORY_CHUNK_OVERLAP"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.ChunkOverlap = int(v)
				return nil
			},
		},
		&cli.IntFlag{
			Name:    "chunk-threshold",
			Usage:   "Content length above which auto_chunk splits a document",
			Value:   1000,
			Sources: cli.EnvVars("MCP_MEMORY_CHUNK_THRESHOLD"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.ChunkThreshold = int(v)
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "workspace-default",
			Usage:       "Fallback workspace when none can be auto-detected",
			Sources:     cli.EnvVars("MCP_MEMORY_WORKSPACE_DEFAULT"),
			Destination: &cfg.WorkspaceDefault,
		},
		&cli.DurationFlag{
			Name:        "workspace-cache-ttl",
			Usage:       "How long a resolved workspace is cached (0 disables caching)",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("MCP_MEMORY_WORKSPACE_CACHE_TTL"),
			Destination: &cfg.WorkspaceCacheTTL,
		},
		&cli.IntFlag{
			Name:    "secrets-medium-threshold",
			Usage:   "Medium-confidence match count at or above which content is blocked",
			Sources: cli.EnvVars("MCP_MEMORY_SECRETS_MEDIUM_THRESHOLD"),
			Action: func(_ context.Context, _ *cli.Command, v int64) error {
				cfg.SecretsMediumThreshold = int(v)
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level: debug, info, warn, or error",
			Value:       "info",
			Sources:     cli.EnvVars("MCP_MEMORY_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
		},
	}
}

// Validate enforces the required fields and shapes the spec calls out
// for the vector index collaborator (spec §6).
func (cfg *Config) Validate() error {
	if cfg.IndexURL == "" {
		return goerr.New("index-url is required")
	}
	if cfg.IndexAuthToken != "" && len(cfg.IndexAuthToken) < 8 {
		return goerr.New("index-auth-token must be at least 8 characters")
	}
	if cfg.CollectionName == "" {
		return goerr.New("collection-name is required")
	}
	return nil
}

// RemoteEmbeddingConfig builds the embedding.RemoteConfig implied by
// cfg, starting from the package defaults.
func (cfg *Config) RemoteEmbeddingConfig() embedding.RemoteConfig {
	rc := embedding.DefaultRemoteConfig()
	rc.APIKey = cfg.RemoteAPIKey
	if cfg.RemoteBaseURL != "" {
		rc.BaseURL = cfg.RemoteBaseURL
	}
	if cfg.LargeDims > 0 {
		rc.LargeDims = cfg.LargeDims
	}
	return rc
}

// LocalEmbeddingConfig builds the embedding.LocalConfig implied by
// cfg.
func (cfg *Config) LocalEmbeddingConfig() embedding.LocalConfig {
	return embedding.LocalConfig{
		ModelID:  cfg.LocalModelID,
		Dims:     cfg.LocalDims,
		CacheDir: cfg.LocalModelCache,
	}
}

// IndexTimeout converts the millisecond flag into a time.Duration.
func (cfg *Config) IndexTimeout() time.Duration {
	if cfg.IndexTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.IndexTimeoutMS) * time.Millisecond
}
