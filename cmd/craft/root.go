package main

import (
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "craft",
	Short: "Stream model answers and run task trees for Linera projects",
	Long: `craft sends prompts to a chat-completions model, decodes the streamed
answer into text and tool calls, and executes task trees one leaf at a time.

Tool calls the model makes are limited to the toolchain installers craft
knows about (Rust, protoc, the wasm target and the Linera SDK) and are only
executed when asked to.

Configuration is read from ~/.config/craft/config.yaml, a .craft.yaml in the
project, and the CRAFT_MODEL_URL, CRAFT_API_TOKEN and CRAFT_MODEL_NAME
environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(versionCmd)
}
