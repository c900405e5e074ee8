package state

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

// Recorder writes one run's executions to a HistoryStore as leaves start
// and finish. History is best effort: store errors are logged and the run
// continues.
type Recorder struct {
	store HistoryStore
	run   Run
	log   zerolog.Logger

	current *Execution
	output  strings.Builder
	last    *Execution
}

// NewRecorder creates the run row. root may be nil for a chat run.
func NewRecorder(store HistoryStore, kind RunKind, source string, root *models.TaskNode, log zerolog.Logger) (*Recorder, error) {
	r := &Recorder{
		store: store,
		run: Run{
			ID:     uuid.New().String(),
			Kind:   kind,
			Source: source,
			PID:    os.Getpid(),
		},
		log: log.With().Str("component", "state").Logger(),
	}
	if root != nil {
		r.run.RootTask = root.Title
		r.run.LeavesTotal = len(root.Leaves())
	}
	if err := store.CreateRun(&r.run); err != nil {
		return nil, err
	}
	return r, nil
}

// RunID returns the run's ID.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// OnStart opens an execution for leaf.
func (r *Recorder) OnStart(leaf *models.TaskNode) {
	r.output.Reset()
	r.current = &Execution{RunID: r.run.ID, TaskID: leaf.ID, Title: leaf.Title}
	if err := r.store.StartExecution(r.current); err != nil {
		r.log.Warn().Err(err).Str("task", leaf.ID).Msg("record execution start")
		r.current = nil
	}
}

// OnEvent accumulates text output for the open execution.
func (r *Recorder) OnEvent(ev llm.Event) {
	if ev.Type == llm.EventText {
		r.output.WriteString(ev.Text)
	}
}

// OnFinish closes the open execution with the leaf's final event.
func (r *Recorder) OnFinish(leaf *models.TaskNode, final llm.Event) {
	if r.current == nil {
		return
	}
	e := r.current
	r.current = nil

	e.Status = leaf.Status
	e.FinalType = string(final.Type)
	e.Output = r.output.String()
	if final.Type == llm.EventError {
		e.Error = final.Text
	}
	for i, call := range final.ToolCalls {
		e.ToolCalls = append(e.ToolCalls, ToolCallRecord{Position: i, Call: call})
	}

	if err := r.store.FinishExecution(e); err != nil {
		r.log.Warn().Err(err).Str("task", leaf.ID).Msg("record execution finish")
		return
	}
	if e.Status == models.TaskStatusDone || e.Status == models.TaskStatusFailed {
		r.run.LeavesDone++
	}
	r.last = e
}

// RecordToolResult stores the outcome of a tool call from the most
// recently finished execution. calls are matched by name in order.
func (r *Recorder) RecordToolResult(call models.ToolCall, success bool, logs string) {
	if r.last == nil {
		return
	}
	for i := range r.last.ToolCalls {
		tc := &r.last.ToolCalls[i]
		if tc.Executed || tc.Call.Name != call.Name {
			continue
		}
		tc.Executed = true
		tc.Success = success
		if err := r.store.RecordToolResult(r.last.ID, tc.Position, success, logs); err != nil {
			r.log.Warn().Err(err).Str("tool", call.Name).Msg("record tool result")
		}
		return
	}
}

// Finish records the run's final status.
func (r *Recorder) Finish(status RunStatus) {
	if err := r.store.FinishRun(r.run.ID, status, r.run.LeavesDone); err != nil {
		r.log.Warn().Err(err).Msg("record run finish")
	}
}
