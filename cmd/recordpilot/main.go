// recordpilot: a conversational copilot over a personal records database.
//
// The same record store, tool catalog and confirmation flow are served three
// ways: as an MCP server for AI hosts, as an HTTP API (web chat plus the
// WhatsApp Cloud API webhook), and as a terminal chat.
//
// Usage:
//
//	recordpilot serve         # MCP server (stdio transport)
//	recordpilot http          # web chat and WhatsApp webhook
//	recordpilot chat          # chat in the terminal
//	recordpilot config init   # write a default config file
//	recordpilot version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "recordpilot",
	Short: "Conversational copilot for projects, tasks and clients",
	Long: `recordpilot manages a personal records database (clients, goals, projects,
tasks, milestones, assets, briefings, meeting transcripts) through natural
language. Every change is confirmed before it is written.

Configuration is read from a YAML file, then .env files, then the
environment. See "recordpilot config init".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"path to the YAML config file (missing is fine)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil,
		".env files to read (default: ./.env when present)")

	rootCmd.AddCommand(serveCmd, httpCmd, chatCmd, configCmd, versionCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recordpilot.yaml"
	}
	return filepath.Join(home, ".recordpilot", "config.yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
