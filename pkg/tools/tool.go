// Package tools publishes the media builders and the session list as MCP
// tools.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool is the interface for all tools
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}
