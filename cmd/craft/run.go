package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/craft"
	"github.com/ShayCichocki/craft/internal/signals"
	"github.com/ShayCichocki/craft/internal/state"
	"github.com/ShayCichocki/craft/pkg/models"
)

var (
	runTUI         bool
	runInteractive bool
	runNext        bool
	runPeek        bool
	runExecute     bool
	runNoTools     bool
	runRestart     bool
	runNoSave      bool
)

var runCmd = &cobra.Command{
	Use:   "run <tasks.yaml>",
	Short: "Execute a task tree one leaf at a time",
	Long: `Execute the leaves of a task tree depth first, streaming each leaf's
answer as it arrives.

Leaves already marked completed in the file are skipped unless --restart is
given, and the file is updated as leaves finish, so 'craft run --next'
works through a tree one leaf per invocation.

'craft stop' from another terminal ends the run after the current leaf.
'craft pause' and 'craft resume' hold and release it between leaves.

Examples:
  craft run tasks.yaml              # Run every remaining leaf
  craft run --next tasks.yaml       # Run only the next leaf
  craft run --peek tasks.yaml       # Show the next leaf without running it
  craft run --tui -x tasks.yaml     # Live view, executing tool calls
  craft run -i tasks.yaml           # Live view driven by typed requests`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live run view")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Live view that runs leaves on request (implies --tui)")
	runCmd.Flags().BoolVar(&runNext, "next", false, "Run only the next leaf")
	runCmd.Flags().BoolVar(&runPeek, "peek", false, "Show the next leaf without running it")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Run the tool calls each leaf returns")
	runCmd.Flags().BoolVar(&runNoTools, "no-tools", false, "Do not offer tools to the model")
	runCmd.Flags().BoolVar(&runRestart, "restart", false, "Run completed leaves again")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not write progress back to the task file")
}

func runTasks(cmd *cobra.Command, args []string) error {
	path := args[0]
	root, err := craft.LoadTree(path)
	if err != nil {
		return err
	}
	if runRestart {
		craft.Reset(root)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if runPeek {
		return peek(a, root)
	}

	ctx, cancel := signalContext()
	defer cancel()

	watcher, err := signals.NewWatcher(a.root, a.log.Logger)
	if err != nil {
		a.log.Warn().Err(err).Msg("stop signals disabled")
	} else {
		defer watcher.Close()
		watcher.Clear()
	}

	var recorder *state.Recorder
	if db, err := a.openHistory(); err != nil {
		a.log.Warn().Err(err).Msg("history disabled")
	} else {
		defer db.Close()
		if recorder, err = state.NewRecorder(db, state.RunKindTasks, path, root, a.log.Logger); err != nil {
			a.log.Warn().Err(err).Msg("history disabled")
			recorder = nil
		}
	}

	manager, err := newManager(a, root, recorder, !runNoTools)
	if err != nil {
		return err
	}
	if skipped := manager.SkipCompleted(); skipped > 0 && !runTUI && !runInteractive {
		printStatus("-", fmt.Sprintf("Skipping %d completed tasks", skipped), color.FgYellow)
	}

	runner := &leafRunner{
		manager:  manager,
		recorder: recorder,
		execute:  runExecute,
	}

	var status state.RunStatus
	switch {
	case runTUI || runInteractive:
		status, err = runWithTUI(ctx, cancel, a, root, runner, watcher)
	default:
		runner.executor = a.executor(os.Stdout)
		runner.observer = &consoleObserver{out: os.Stdout}
		status, err = drive(ctx, runner, stopCheck(watcher, nil), runNext)
	}

	if recorder != nil {
		recorder.Finish(status)
	}
	if !runNoSave {
		if saveErr := craft.SaveTree(path, root); saveErr != nil {
			a.log.Warn().Err(saveErr).Msg("save task file")
			printStatus("!", "Could not save progress: "+saveErr.Error(), color.FgYellow)
		}
	}
	if err != nil {
		return err
	}

	if !runTUI && !runInteractive {
		reportRun(status, manager)
	}
	if status == state.RunFailed {
		return fmt.Errorf("some tasks failed")
	}
	return nil
}

// peek prints the tree with the next leaf marked.
func peek(a *app, root *models.TaskNode) error {
	manager, err := newManager(a, root, nil, false)
	if err != nil {
		return err
	}
	manager.SkipCompleted()

	next := manager.NextTaskInfo()
	fmt.Print(craft.Render(root, next))
	if next == nil {
		printStatus("✓", "All tasks are complete", color.FgGreen)
		return nil
	}
	printStatus("→", "Next: "+taskLabel(next), color.FgCyan)
	if next.Prompt != "" {
		fmt.Println(next.Prompt)
	}
	return nil
}

// stopCheck combines the file signal watcher and an in-process flag. Either
// may be nil.
func stopCheck(watcher *signals.Watcher, flag *atomic.Bool) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		if flag != nil && flag.Load() {
			return true, nil
		}
		if watcher == nil {
			return false, nil
		}
		if watcher.ShouldStop() {
			return true, nil
		}
		if err := watcher.WaitWhilePaused(ctx); err != nil {
			return false, err
		}
		return watcher.ShouldStop() || (flag != nil && flag.Load()), nil
	}
}

// drive runs leaves until the tree is exhausted, a stop is requested or ctx
// is done. With once set it runs at most one leaf. A failed tool call ends
// the run; a leaf that ends in an error event does not.
func drive(ctx context.Context, runner *leafRunner, shouldStop func(context.Context) (bool, error), once bool) (state.RunStatus, error) {
	failed := false
	for {
		stop, err := shouldStop(ctx)
		if err != nil {
			return state.RunStopped, err
		}
		if stop {
			return state.RunStopped, nil
		}
		if err := ctx.Err(); err != nil {
			return state.RunStopped, err
		}

		out, err := runner.runNext(ctx)
		if err != nil {
			return state.RunStopped, err
		}
		if out == nil {
			break
		}
		if out.toolErr != nil {
			return state.RunFailed, out.toolErr
		}
		if out.failed() {
			failed = true
		}
		if once {
			break
		}
	}

	if failed {
		return state.RunFailed, nil
	}
	return state.RunCompleted, nil
}

func reportRun(status state.RunStatus, manager *craft.Manager) {
	switch status {
	case state.RunStopped:
		printStatus("■", "Run stopped", color.FgYellow)
	case state.RunFailed:
		printStatus("✗", "Run finished with failures", color.FgRed)
	default:
		if next := manager.NextTaskInfo(); next != nil {
			printStatus("→", "Next: "+taskLabel(next), color.FgCyan)
		} else {
			printStatus("✓", "All tasks are complete", color.FgGreen)
		}
	}
}
