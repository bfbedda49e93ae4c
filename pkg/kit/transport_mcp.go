package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolDecoder turns the arguments of a tool call into the request value its
// Endpoint expects.
type ToolDecoder func(mcp.CallToolRequest) (any, error)

// RegisterMCPTool exposes endpoint as tool on srv.
//
// Each call runs with a fresh request ID and the tool name in its context.
// When the context carries no session yet, the MCP client session ID is
// copied in, so Logging can attribute calls made over any transport.
// Failures are returned as tool error results tagged with the request ID.
func RegisterMCPTool(srv *server.MCPServer, tool mcp.Tool, endpoint Endpoint, decode ToolDecoder) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return callTool(ctx, tool.Name, endpoint, decode, req), nil
	})
}

func callTool(ctx context.Context, name string, endpoint Endpoint, decode ToolDecoder, req mcp.CallToolRequest) *mcp.CallToolResult {
	ctx = WithTool(WithRequestID(ctx, uuid.NewString()), name)
	if GetSession(ctx) == "" {
		if cs := server.ClientSessionFromContext(ctx); cs != nil {
			ctx = WithSession(ctx, cs.SessionID())
		}
	}

	in, err := decode(req)
	if err != nil {
		return toolError(ctx, fmt.Errorf("invalid arguments: %w", err))
	}
	resp, err := endpoint(ctx, in)
	if err != nil {
		return toolError(ctx, err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return toolError(ctx, fmt.Errorf("marshal response: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}

func toolError(ctx context.Context, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s (request %s): %v", GetTool(ctx), GetRequestID(ctx), err))
}
