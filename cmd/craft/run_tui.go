package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/craft/internal/craft"
	"github.com/ShayCichocki/craft/internal/intent"
	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/internal/signals"
	"github.com/ShayCichocki/craft/internal/state"
	"github.com/ShayCichocki/craft/internal/tools"
	"github.com/ShayCichocki/craft/internal/tui"
	"github.com/ShayCichocki/craft/pkg/models"
)

const questionPrompt = `Here is the task plan I am working through:

%s
Answer this request about the plan or the project:
%s`

// tuiObserver forwards leaf output to the run view. Messages carry copies
// of the leaf fields; the view never reads the tree the driver mutates.
type tuiObserver struct {
	program *tea.Program
}

func (o *tuiObserver) leafStarted(leaf *models.TaskNode) {
	o.program.Send(tui.LeafStartMsg{ID: leaf.ID, Title: leaf.Title})
}

func (o *tuiObserver) event(ev llm.Event) {
	o.program.Send(tui.EventMsg{Event: ev})
}

func (o *tuiObserver) leafFinished(leaf *models.TaskNode, final llm.Event) {
	o.program.Send(tui.LeafDoneMsg{ID: leaf.ID, Status: leaf.Status, Final: final})
}

func (o *tuiObserver) toolResult(res tools.Result) {
	o.program.Send(tui.ToolResultMsg{Call: res.Call, Success: res.Success})
}

// noticeWriter turns command output into notice lines in the run view.
type noticeWriter struct {
	program *tea.Program
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *noticeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial.Write(p)
	for {
		line, err := w.partial.ReadString('\n')
		if err != nil {
			// Keep the incomplete line for the next write.
			w.partial.Reset()
			w.partial.WriteString(line)
			return len(p), nil
		}
		w.program.Send(tui.NoticeMsg{Text: strings.TrimRight(line, "\r\n")})
	}
}

// runWithTUI drives the run behind the bubbletea run view. Without
// --interactive every remaining leaf runs at once; with it, leaves run when
// a typed request asks for the next task and other requests are answered
// against the plan.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, a *app, root *models.TaskNode, runner *leafRunner, watcher *signals.Watcher) (state.RunStatus, error) {
	var stopFlag atomic.Bool
	prompts := make(chan string, 8)

	opts := tui.RunOptions{
		Interactive: runInteractive,
		OnStop:      func() { stopFlag.Store(true) },
	}
	if runInteractive {
		opts.OnPrompt = func(text string) {
			select {
			case prompts <- text:
			default:
				a.log.Warn().Msg("prompt dropped, previous request still running")
			}
		}
	}

	program, _ := tui.NewRunProgram(root, opts)
	runner.observer = &tuiObserver{program: program}
	runner.executor = a.executor(&noticeWriter{program: program})

	type result struct {
		status state.RunStatus
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var r result
		if runInteractive {
			r.status, r.err = converse(ctx, a, root, runner, prompts, program, stopCheck(watcher, &stopFlag))
		} else {
			r.status, r.err = drive(ctx, runner, stopCheck(watcher, &stopFlag), runNext)
		}
		program.Send(tui.RunDoneMsg{Err: r.err, Stopped: r.status == state.RunStopped})
		done <- r
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return state.RunFailed, fmt.Errorf("run view: %w", err)
	}

	// The view quits on request; stop the driver too.
	cancel()
	r := <-done
	if r.err != nil && ctx.Err() != nil {
		// Canceled by quitting the view.
		return state.RunStopped, nil
	}
	return r.status, r.err
}

// converse answers typed requests until the view quits or a stop is
// requested. A request classified as asking for the next task runs one leaf.
func converse(
	ctx context.Context,
	a *app,
	root *models.TaskNode,
	runner *leafRunner,
	prompts <-chan string,
	program *tea.Program,
	shouldStop func(context.Context) (bool, error),
) (state.RunStatus, error) {
	analyzer := intent.NewAnalyzer(a.client)
	notice := func(format string, args ...any) {
		program.Send(tui.NoticeMsg{Text: fmt.Sprintf(format, args...)})
	}

	notice("Type a request, or ask for the next task to run it.")
	failed := false
	for {
		select {
		case <-ctx.Done():
			switch {
			case !runner.manager.Done():
				return state.RunStopped, nil
			case failed:
				return state.RunFailed, nil
			}
			return state.RunCompleted, nil
		case text := <-prompts:
			stop, err := shouldStop(ctx)
			if err != nil || stop {
				return state.RunStopped, err
			}

			plan := craft.Render(root, runner.manager.NextTaskInfo())
			in, err := analyzer.Analyze(ctx, text, plan)
			if err != nil {
				notice("Could not understand the request: %v", err)
				continue
			}
			a.log.Debug().
				Str("intent", in.Description).
				Float64("confidence", in.Confidence).
				Bool("next_task", in.RequestNextTask).
				Msg("analyzed request")

			if in.RequestNextTask {
				out, err := runner.runNext(ctx)
				if err != nil {
					return state.RunStopped, err
				}
				if out == nil {
					notice("All tasks are complete.")
					continue
				}
				if out.failed() {
					failed = true
				}
				if runner.manager.Done() {
					notice("All tasks are complete.")
				}
				continue
			}

			answer, err := a.client.Complete(ctx, llm.Request{
				System: craft.DefaultRole,
				Prompt: fmt.Sprintf(questionPrompt, plan, text),
			})
			if err != nil {
				notice("Request failed: %v", err)
				continue
			}
			program.Send(tui.EventMsg{Event: llm.TextEvent(answer+"\n", false)})
		}
	}
}
