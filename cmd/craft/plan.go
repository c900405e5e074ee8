package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/craft"
)

var planOutput string

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Break a goal into a task tree",
	Long: `Ask the model to break a goal into nested tasks and write the tree to a
file that 'craft run' can execute. A .json output path writes JSON; anything
else writes YAML.

Examples:
  craft plan "build a Linera counter application"
  craft plan -o counter.json "build a Linera counter application"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		root, err := craft.NewPlanner(a.client).Plan(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := craft.SaveTree(planOutput, root); err != nil {
			return err
		}

		fmt.Print(craft.Render(root, nil))
		printStatus("✓", fmt.Sprintf("Wrote %d tasks to %s", len(root.Leaves()), planOutput), color.FgGreen)
		return nil
	},
}

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "tasks.yaml", "Task file to write")
}
