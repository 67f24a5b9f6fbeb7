// Package server runs the designscan MCP server.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/designscan/internal/tools"
)

// Server wraps the MCP server with its tools and lifecycle.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server with the given version and logger.
func New(version string, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "designscan",
		Version: version,
	}

	return &Server{
		mcp:    mcp.NewServer(impl, nil),
		logger: logger,
	}
}

// Setup adds logging middleware and registers the tools backed by deps.
func (s *Server) Setup(deps *tools.Dependencies) {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
	if deps != nil {
		tools.RegisterAll(s.mcp, deps)
	}
}

// Run serves on stdio and blocks until disconnect or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
