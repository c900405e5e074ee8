package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ShayCichocki/craft/internal/craft"
	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/internal/state"
	"github.com/ShayCichocki/craft/internal/tools"
	"github.com/ShayCichocki/craft/pkg/models"
)

// leafObserver receives everything a console leaf run produces.
type leafObserver interface {
	leafStarted(leaf *models.TaskNode)
	event(ev llm.Event)
	leafFinished(leaf *models.TaskNode, final llm.Event)
	toolResult(res tools.Result)
}

// leafOutcome is what one executed leaf produced.
type leafOutcome struct {
	leaf    *models.TaskNode
	final   llm.Event
	results []tools.Result
	// toolErr is set when executing the leaf's tool calls failed.
	toolErr error
}

// failed reports whether the leaf ended in an error event or a failed tool.
func (o leafOutcome) failed() bool {
	return o.final.Type == llm.EventError || o.toolErr != nil
}

// leafRunner executes leaves of a manager one at a time, recording each
// one and optionally running the tool calls it produced.
type leafRunner struct {
	manager  *craft.Manager
	recorder *state.Recorder
	executor *tools.Executor
	// execute runs tool calls after each leaf.
	execute  bool
	observer leafObserver
}

// newManager wires the recorder into the manager's hooks.
func newManager(a *app, root *models.TaskNode, recorder *state.Recorder, withTools bool) (*craft.Manager, error) {
	opts := craft.Options{}
	if withTools {
		opts.Tools = a.registry.Definitions()
	}
	if recorder != nil {
		opts.Hooks = craft.Hooks{OnStart: recorder.OnStart, OnFinish: recorder.OnFinish}
	}
	return craft.NewManager(root, craft.NewClientDecoder(a.client), opts, a.log.Logger)
}

// runNext executes the next leaf. It returns nil when the tree is exhausted.
func (r *leafRunner) runNext(ctx context.Context) (*leafOutcome, error) {
	run := r.manager.ExecuteNext(ctx)
	defer run.Close()

	leaf := run.Task()
	if leaf == nil {
		return nil, nil
	}
	r.observer.leafStarted(leaf)

	out := &leafOutcome{leaf: leaf}
	for {
		ev, err := run.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		if r.recorder != nil {
			r.recorder.OnEvent(ev)
		}
		r.observer.event(ev)
		if ev.Final {
			out.final = ev
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	r.observer.leafFinished(leaf, out.final)

	if r.execute && out.final.Type == llm.EventToolCall && len(leaf.ToolCalls) > 0 {
		results, err := r.executor.Run(ctx, leaf.ToolCalls)
		out.results = results
		out.toolErr = err
		for _, res := range results {
			if r.recorder != nil {
				r.recorder.RecordToolResult(res.Call, res.Success, res.Logs)
			}
			r.observer.toolResult(res)
		}
	}
	return out, nil
}

// consoleObserver prints leaf output to a terminal.
type consoleObserver struct {
	out   io.Writer
	quiet bool
}

func (c *consoleObserver) leafStarted(leaf *models.TaskNode) {
	if !c.quiet {
		printStatus("▶", taskLabel(leaf), color.FgMagenta)
	}
}

func (c *consoleObserver) event(ev llm.Event) {
	switch ev.Type {
	case llm.EventText:
		fmt.Fprint(c.out, ev.Text)
	case llm.EventToolCall:
		fmt.Fprintln(c.out)
		printToolCalls(ev.ToolCalls)
	case llm.EventError:
		fmt.Fprintln(c.out)
		printStatus("✗", ev.Text, color.FgRed)
	}
}

func (c *consoleObserver) leafFinished(leaf *models.TaskNode, final llm.Event) {
	if final.Type == llm.EventText {
		fmt.Fprintln(c.out)
	}
	if !c.quiet && final.Type != llm.EventError {
		printStatus("✓", taskLabel(leaf)+" done", color.FgGreen)
	}
}

func (c *consoleObserver) toolResult(res tools.Result) {
	if res.Success {
		printStatus("✓", res.Call.Name, color.FgGreen)
		return
	}
	printStatus("✗", res.Call.Name+" failed", color.FgRed)
}

func taskLabel(n *models.TaskNode) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}
