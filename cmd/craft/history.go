package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/config"
	"github.com/ShayCichocki/craft/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `Without arguments, list recent runs. With a run ID (or a unique prefix),
show each executed leaf with its output and tool calls.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs that finished longer ago than this (e.g. 720h)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.DBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs yet. Run 'craft run <tasks.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if _, err := db.RecoverInterrupted(); err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	}

	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Deleted %d runs", n), color.FgGreen)
		return nil
	}

	if len(args) == 1 {
		return displayRun(db, args[0])
	}
	return displayRuns(db)
}

func displayRuns(db *state.DB) error {
	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet.")
		return nil
	}

	for _, r := range runs {
		title := r.RootTask
		if title == "" {
			title = r.Source
		}
		pad := strings.Repeat(" ", max(0, 11-len(r.Status)))
		fmt.Printf("%s  %-5s  %s%s  %d/%d  %s ago  %s\n",
			r.ID[:8], r.Kind, colorStatus(string(r.Status)), pad, r.LeavesDone, r.LeavesTotal,
			formatDuration(time.Since(r.StartedAt)), truncateLine(title, 60))
	}
	return nil
}

func displayRun(db *state.DB, id string) error {
	run, err := findRun(db, id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  Kind:    %s\n", run.Kind)
	fmt.Printf("  Source:  %s\n", run.Source)
	fmt.Printf("  Status:  %s\n", colorStatus(string(run.Status)))
	fmt.Printf("  Leaves:  %d/%d\n", run.LeavesDone, run.LeavesTotal)
	fmt.Printf("  Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Printf("  Took:    %s\n", formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}

	executions, err := db.ListExecutions(run.ID)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	for _, e := range executions {
		fmt.Println()
		title := e.Title
		if title == "" {
			title = e.TaskID
		}
		fmt.Printf("%s %s\n", colorStatus(string(e.Status)), color.New(color.Bold).Sprint(title))
		if out := strings.TrimSpace(e.Output); out != "" {
			for _, line := range strings.Split(out, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		if e.Error != "" {
			printStatus("  ✗", e.Error, color.FgRed)
		}
		for _, tc := range e.ToolCalls {
			mark := "  ○"
			attr := color.FgCyan
			switch {
			case tc.Executed && tc.Success:
				mark, attr = "  ✓", color.FgGreen
			case tc.Executed:
				mark, attr = "  ✗", color.FgRed
			}
			printStatus(mark, tc.Call.Name, attr)
		}
	}
	return nil
}

// findRun resolves a full run ID or a unique prefix among recent runs.
func findRun(db *state.DB, id string) (*state.Run, error) {
	if run, err := db.GetRun(id); err != nil {
		return nil, err
	} else if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match *state.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return match, nil
}

func colorStatus(status string) string {
	switch status {
	case string(state.RunCompleted), "done":
		return color.GreenString(status)
	case string(state.RunFailed):
		return color.RedString(status)
	case string(state.RunRunning):
		return color.CyanString(status)
	default:
		return color.YellowString(status)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
