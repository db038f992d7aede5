// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server for Claude Desktop integration
package cli

import (
	"context"
	"log/slog"

	"github.com/harperreed/ufficio/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServer builds the server with every tool, resource and prompt
// registered.
func NewMCPServer(env *Env, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ufficio",
		Version: version,
	}, nil)
	handlers.New(env.Svc, env.Actor).Register(server)
	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, env *Env, logger *slog.Logger, version string) error {
	logger.Info("starting MCP server", "version", version)
	return NewMCPServer(env, version).Run(ctx, &mcp.StdioTransport{})
}
