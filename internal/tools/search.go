package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/designscan/internal/service"
)

// SearchFramesInput defines the input schema for search_frames.
type SearchFramesInput struct {
	Query string `json:"query" jsonschema:"Natural language description of the screen, component or rule to find"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results 1-50, default 10"`
}

// NewSearchFramesHandler creates the search_frames tool handler.
func NewSearchFramesHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchFramesInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchFramesInput) (*mcp.CallToolResult, any, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return ErrorResult("Query cannot be empty", "Provide search terms"), nil, nil
		}
		if input.Limit < 0 || input.Limit > 50 {
			return ErrorResult("Limit must be 1-50", "Reduce limit value"), nil, nil
		}
		if deps.Search == nil {
			return ErrorResult(service.ErrIndexUnavailable.Error(), "Set EMBED_PROVIDER and SURREALDB_URL"), nil, nil
		}

		results, err := deps.Search.Search(ctx, query, input.Limit)
		switch {
		case errors.Is(err, service.ErrIndexUnavailable):
			return ErrorResult(err.Error(), "Set EMBED_PROVIDER and SURREALDB_URL"), nil, nil
		case err != nil:
			deps.logger().Error("search_frames failed", "query", query, "error", err)
			return ErrorResult("Search failed", "Check embedding service and database"), nil, nil
		}

		if len(results) == 0 {
			return TextResult("No frames found for: " + query), nil, nil
		}
		return JSONResult(map[string]any{"query": query, "results": results, "count": len(results)}), nil, nil
	}
}
