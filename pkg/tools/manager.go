package tools

import (
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/server"
)

// ToolManager manages the available tools
type ToolManager struct {
	tools map[string]Tool
}

// NewToolManager creates a new ToolManager
func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]Tool),
	}
}

// RegisterTool registers a new tool, replacing any tool with the same name.
func (m *ToolManager) RegisterTool(tool Tool) {
	m.tools[tool.Definition().Name] = tool
}

// List returns all registered tools sorted by name.
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].Definition().Name < ts[j].Definition().Name
	})
	return ts
}

// GetTool retrieves a tool by name
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// Server returns an MCP server exposing every registered tool.
func (m *ToolManager) Server(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	for _, t := range m.List() {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}
