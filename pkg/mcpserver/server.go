// Package mcpserver wires the nine memory-* operations into an MCP
// server over stdio, translating each tool's typed parameters into
// the orchestrator's Input structs and each resulting envelope into a
// CallToolResult (spec §6). Grounded on examples/mcp-server/main.go's
// mcp.NewServer/mcp.AddTool/mcp.StdioTransport wiring.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/kodaiva/mcp-memory/pkg/memtool"
	"github.com/kodaiva/mcp-memory/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Name and Version identify this server to MCP clients during the
// initialize handshake.
const (
	Name    = "mcp-memory"
	Version = "0.1.0"
)

// New builds the MCP server with all nine memory-* tools registered
// against orch.
func New(orch *memtool.Orchestrator) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-store",
		Description: "Store a piece of content as a long-term, episodic, or short-term memory, scanning it for secrets first and splitting it into a chunk group when it is long.",
	}, handleStore(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-query",
		Description: "Search stored memories by semantic similarity, optionally fused with full-text search via reciprocal rank fusion.",
	}, handleQuery(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-list",
		Description: "List stored memories with an optional filter, sorted and paginated.",
	}, handleList(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-get",
		Description: "Fetch a single stored memory by id.",
	}, handleGet(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-update",
		Description: "Update a stored memory's content and/or metadata, optionally reindexing its embeddings.",
	}, handleUpdate(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-delete",
		Description: "Delete a single stored memory by id.",
	}, handleDelete(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-batch-delete",
		Description: "Delete up to 100 stored memories by id in one call.",
	}, handleBatchDelete(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-status",
		Description: "Report vector index collection stats, per-workspace and per-memory-type counts, and embedding engine stats.",
	}, handleStatus(orch))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory-count",
		Description: "Count stored memories matching an optional filter.",
	}, handleCount(orch))

	return server
}

// Run registers the tools and serves them over stdio until ctx is
// canceled or the client disconnects.
func Run(ctx context.Context, orch *memtool.Orchestrator) error {
	return New(orch).Run(ctx, &mcp.StdioTransport{})
}

// toResult marshals an envelope into the tool's single text content
// block; env.Success drives CallToolResult.IsError so clients can
// distinguish a tool-level failure from a transport error.
func toResult(env *model.Envelope) (*mcp.CallToolResult, any, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: !env.Success,
	}, nil, nil
}
