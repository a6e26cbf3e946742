package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	rpserver "github.com/HendryAvila/recordpilot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the MCP server (stdio transport). The host's model drives the record
tools directly; no Gemini key is needed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, cleanup, err := rpserver.New(backendOptions(cfg, log))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Info("MCP server starting", "version", rpserver.Version)
	return server.ServeStdio(s)
}
