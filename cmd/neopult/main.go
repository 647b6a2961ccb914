package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neopult/neopult/cmd/neopult/commands"
	"github.com/neopult/neopult/logger"
)

var rootCmd = &cobra.Command{
	Use:   "neopult",
	Short: "Neopult - per-channel orchestration daemon for remote teaching rooms",
	Long: `Neopult controls a headless VNC-backed X session for a remote teaching
channel: it launches helper processes, claims their X windows, arranges them
under a single-primary compositional policy, and exposes the result to
scripted plugins and their clients over a WebSocket control plane and a
stdin console.

Available commands:
  serve          - Run the channel daemon
  version        - Show neopult version information
  plugin install - Fetch a plugin bundle into the channel's plugins directory`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("log-json", false, "emit structured JSON logs instead of human-readable ones")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.PluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
