// Package main provides the CLI entry point for the animus cognitive core.
//
// Animus runs a continuous cognitive loop: it ingests user input, chat
// messages, tool results, and reminders into a bounded thought buffer,
// thinks with a local or remote language model, executes tools through a
// gated dispatch engine, and speaks when its own thoughts demand it.
//
// # Basic Usage
//
// Start the agent:
//
//	animus run --config animus.yaml
//
// Validate a configuration file:
//
//	animus config check --config animus.yaml
//
// # Environment Variables
//
// Configuration values may reference environment variables with ${VAR}
// syntax; common ones:
//
//   - OPENAI_API_KEY: API key when llm.provider or embeddings.provider is "openai"
//   - DISCORD_BOT_TOKEN: Discord bot token when the Discord adapter is enabled
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/animus-ai/animus/internal/config"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "animus",
		Short: "Animus - autonomous cognitive core",
		Long: `Animus is an autonomous conversational agent built around a continuous
cognitive loop: a bounded thought buffer, a four-tier persistent memory,
a manifest-driven tool registry, and a response decider that chooses
each tick between reacting, planning, reflecting, and speaking.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(buildConfigCheckCmd())
	return cmd
}

func buildConfigCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: agent %q, llm %s/%s, tools dir %s\n",
				cfg.Agent.Name, cfg.LLM.Provider, cfg.LLM.Model, cfg.Tools.Dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "animus.yaml", "Path to YAML configuration file")
	return cmd
}
