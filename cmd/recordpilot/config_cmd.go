package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/recordpilot/internal/config"
	rpserver "github.com/HendryAvila/recordpilot/internal/server"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to --config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Default().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config:    %s\n", configPath)
		fmt.Fprintf(out, "database:  %s\n", cfg.DBPath())
		fmt.Fprintf(out, "side logs: %s\n", cfg.Store.SideLogDir)
		fmt.Fprintf(out, "model:     %s\n", cfg.LLM.Model)
		if err := cfg.RequireLLM(); err != nil {
			fmt.Fprintf(out, "warning:   %v (serve still works)\n", err)
		}
		fmt.Fprintf(out, "whatsapp:  %t\n", cfg.WhatsApp.Enabled)
		fmt.Fprintf(out, "redis:     %s\n", orNone(cfg.Redis.Addr))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "recordpilot v%s\n", rpserver.Version)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
