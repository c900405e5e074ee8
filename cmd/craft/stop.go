package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/config"
	"github.com/ShayCichocki/craft/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running 'craft run' after its current leaf",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.SendStop, "Stop requested")
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Hold a running 'craft run' before its next leaf",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.SendPause, "Pause requested")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Release a paused 'craft run'",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal(signals.Resume, "Resumed")
	},
}

func sendSignal(send func(projectRoot string) error, done string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := send(cfg.ProjectRoot()); err != nil {
		return err
	}
	printStatus("✓", done, color.FgGreen)
	return nil
}
