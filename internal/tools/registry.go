package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// Call it after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_analysis",
		Description: "Start analyzing every frame of a Figma file with the vision model. Returns immediately with a job id",
	}, NewStartAnalysisHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Get status, progress and summary of an analysis job",
	}, NewGetAnalysisHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wait_analysis",
		Description: "Block until an analysis job finishes or the timeout passes, then return it",
	}, NewWaitAnalysisHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_analyses",
		Description: "List recent analysis jobs, newest first",
	}, NewListAnalysesHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_analysis",
		Description: "Delete an analysis job and its results",
	}, NewDeleteAnalysisHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_frames",
		Description: "Semantic search over indexed frame specs",
	}, NewSearchFramesHandler(deps))
}
