package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/config"
	"github.com/ShayCichocki/craft/internal/exec"
	"github.com/ShayCichocki/craft/internal/project"
)

var (
	projectDir     string
	projectSetRoot bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage Linera projects",
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a Linera project with 'linera project new'",
	Long: `Create a new Linera project in the given directory (the current one by
default). The name may contain lowercase letters, numbers and hyphens.

With --set-root the new project becomes linera.project_root in the user
configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		ctx, cancel := signalContext()
		defer cancel()

		path, err := project.NewCreator(exec.NewRunner(), log.Logger).Create(ctx, projectDir, args[0])
		if err != nil {
			return err
		}
		printStatus("✓", "Created "+path, color.FgGreen)

		if projectSetRoot {
			user, err := config.LoadUser()
			if err != nil {
				return err
			}
			if err := config.Set(user, "linera.project_root", path); err != nil {
				return err
			}
			if err := config.Save(user); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			printStatus("✓", "Set linera.project_root = "+path, color.FgGreen)
		}
		return nil
	},
}

func init() {
	projectNewCmd.Flags().StringVar(&projectDir, "dir", ".", "Parent directory for the project")
	projectNewCmd.Flags().BoolVar(&projectSetRoot, "set-root", false, "Make the new project the configured project root")

	projectCmd.AddCommand(projectNewCmd)
}
