package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/pkg/tools"
)

const version = "0.1.0"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the media and session tools over MCP stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger.SetOutput(os.Stderr)

	d, err := loadDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	m := tools.NewToolManager()
	m.RegisterTool(tools.NewImageTool(d.images))
	m.RegisterTool(tools.NewSpeechTool(d.speech))
	m.RegisterTool(tools.NewSessionsTool(d.store))

	logger.L.Info("serving mcp on stdio", "tools", len(m.List()))
	return server.ServeStdio(m.Server("pocketchat", version))
}
