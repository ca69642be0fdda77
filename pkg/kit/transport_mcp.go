package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Args wraps MCP tool arguments with typed accessors.
type Args map[string]any

// String returns the trimmed string argument, or "" when absent.
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return strings.TrimSpace(v)
}

// Bool returns the boolean argument, or def when absent or not a bool.
func (a Args) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// RegisterMCPTool exposes an Endpoint as an MCP tool. decode turns the call
// arguments into the endpoint request; decode and endpoint errors become
// tool errors rather than protocol errors.
func RegisterMCPTool(srv *server.MCPServer, tool mcp.Tool, endpoint Endpoint, decode func(Args) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		request, err := decode(Args(req.GetArguments()))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		resp, err := endpoint(WithTransport(ctx, TransportMCP), request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}
