package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/craft"
	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/internal/state"
	"github.com/ShayCichocki/craft/pkg/models"
)

var (
	chatRole    string
	chatExecute bool
	chatNoTools bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Stream one prompt and show the tool calls it produces",
	Long: `Send a prompt to the model and stream the answer.

The model is told about the available tools and may end its answer with a
batch of tool calls. The calls are listed; with --execute they are run in
dependency order in the project root.

Examples:
  craft chat "set up a Linera toolchain on this machine"
  craft chat --execute "install protoc"
  craft chat --no-tools "explain what a Linera microchain is"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatRole, "role", craft.DefaultRole, "System role sent with the prompt")
	chatCmd.Flags().BoolVarP(&chatExecute, "execute", "x", false, "Run the tool calls the model returns")
	chatCmd.Flags().BoolVar(&chatNoTools, "no-tools", false, "Do not offer tools to the model")
}

func runChat(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	leaf := &models.TaskNode{ID: "chat", Title: prompt, Role: chatRole, Prompt: prompt}

	var recorder *state.Recorder
	if db, err := a.openHistory(); err != nil {
		a.log.Warn().Err(err).Msg("history disabled")
	} else {
		defer db.Close()
		if recorder, err = state.NewRecorder(db, state.RunKindChat, prompt, leaf, a.log.Logger); err != nil {
			a.log.Warn().Err(err).Msg("history disabled")
			recorder = nil
		}
	}

	manager, err := newManager(a, leaf, recorder, !chatNoTools)
	if err != nil {
		return err
	}
	runner := &leafRunner{
		manager:  manager,
		recorder: recorder,
		executor: a.executor(os.Stdout),
		execute:  chatExecute,
		observer: &consoleObserver{out: os.Stdout, quiet: true},
	}

	outcome, err := runner.runNext(ctx)
	status := state.RunCompleted
	switch {
	case err != nil:
		status = state.RunStopped
	case outcome != nil && outcome.failed():
		status = state.RunFailed
	}
	if recorder != nil {
		recorder.Finish(status)
	}
	if err != nil {
		return err
	}
	if outcome == nil {
		return nil
	}

	if outcome.final.Type == llm.EventError {
		return fmt.Errorf("chat failed: %s", outcome.final.Text)
	}
	if outcome.toolErr != nil {
		return outcome.toolErr
	}
	if !chatExecute && len(leaf.ToolCalls) > 0 {
		printStatus("i", "Run again with --execute to apply these tool calls", color.FgBlue)
	}
	return nil
}
