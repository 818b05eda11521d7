package main

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/kodaiva/mcp-memory/pkg/config"
	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/kodaiva/mcp-memory/pkg/mcpserver"
	"github.com/kodaiva/mcp-memory/pkg/memtool"
	"github.com/kodaiva/mcp-memory/pkg/secrets"
	"github.com/kodaiva/mcp-memory/pkg/utils/logging"
	"github.com/kodaiva/mcp-memory/pkg/vectorindex"
	"github.com/kodaiva/mcp-memory/pkg/workspace"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-memory: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string) error {
	var cfg config.Config

	cmd := &cli.Command{
		Name:  "mcp-memory",
		Usage: "Persistent semantic-memory MCP server",
		Flags: config.Flags(&cfg),
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx, &cfg)
		},
	}

	return cmd.Run(ctx, argv)
}

// serve validates cfg, constructs every collaborator, and blocks
// serving the MCP tools over stdio. Logging is directed to stderr
// since stdio transport reserves stdout for JSON-RPC frames.
func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	ctx = logging.With(ctx, logger)

	provider, err := embedding.SelectProvider(cfg.EmbeddingProvider, cfg.RemoteEmbeddingConfig(), cfg.LocalEmbeddingConfig())
	if err != nil {
		return err
	}
	engine := embedding.NewEngine(provider, cfg.EmbeddingCacheCap)

	client := vectorindex.NewClient(cfg.IndexURL, cfg.IndexAuthToken, cfg.IndexTimeout())
	controller := vectorindex.NewController(client, vectorindex.CollectionConfig{
		Name:      cfg.CollectionName,
		SmallDims: provider.SmallDims(),
		LargeDims: provider.LargeDims(),
	})

	// Eager, blocking init: a schema mismatch (vectorindex.ErrSchemaMismatch)
	// must be a hard startup failure, not a per-call EXECUTION_ERROR
	// surfaced lazily on the first tool call.
	if err := controller.Initialize(ctx); err != nil {
		return goerr.Wrap(err, "collection initialization failed")
	}

	scanner := secrets.NewScanner(cfg.SecretsMediumThreshold)
	resolver := workspace.New(cfg.WorkspaceDefault, cfg.WorkspaceCacheTTL)

	orch := memtool.New(memtool.Options{
		Scanner:        scanner,
		Resolver:       resolver,
		Engine:         engine,
		Controller:     controller,
		ChunkThreshold: cfg.ChunkThreshold,
		ChunkOptions:   embedding.ChunkOptions{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
	})

	logger.Info("starting mcp-memory server",
		"collection", cfg.CollectionName,
		"embedding_provider", cfg.EmbeddingProvider,
	)

	return mcpserver.Run(ctx, orch)
}
