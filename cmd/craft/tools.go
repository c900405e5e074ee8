package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/llm"
)

var toolsDryRun bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or run the tools the model may call",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the allowed tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, t := range a.registry.Tools() {
			name := t.Name
			if len(t.Aliases) > 0 {
				name += " (" + strings.Join(t.Aliases, ", ") + ")"
			}
			fmt.Printf("%s\n", color.New(color.Bold).Sprint(name))
			fmt.Printf("  %s\n", t.Description)
			if len(t.DependsOn) > 0 {
				fmt.Printf("  after: %s\n", strings.Join(t.DependsOn, ", "))
			}
		}
		fmt.Printf("\npolicy for other tools: %s\n", a.client.Settings().ToolPolicy)
		return nil
	},
}

var toolsRunCmd = &cobra.Command{
	Use:   "run <batch.json|->",
	Short: "Run a tool-call batch",
	Long: `Run a JSON array of tool calls, in the same form the model writes after
TOOL_CALL:, in dependency order. Use - to read the batch from stdin.

Example:
  echo '[{"name":"install_protoc","args":{}}]' | craft tools run -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		calls, err := llm.ParseToolCalls(string(data))
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		executor := a.executor(os.Stdout)
		if toolsDryRun {
			ordered, err := executor.Order(calls)
			if err != nil {
				return err
			}
			for _, call := range ordered {
				command, err := a.registry.Command(call)
				if err != nil {
					return err
				}
				printStatus("→", call.Name, color.FgCyan)
				fmt.Printf("  %s\n", command)
			}
			return nil
		}

		ctx, cancel := signalContext()
		defer cancel()

		results, err := executor.Run(ctx, calls)
		for _, res := range results {
			if res.Success {
				printStatus("✓", res.Call.Name, color.FgGreen)
			} else {
				printStatus("✗", res.Call.Name+" failed", color.FgRed)
			}
		}
		return err
	},
}

func init() {
	toolsRunCmd.Flags().BoolVar(&toolsDryRun, "dry-run", false, "Print the commands without running them")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsRunCmd)
}

// readInput reads a file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
