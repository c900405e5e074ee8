// Package craft executes hierarchical task trees one leaf at a time, sending
// each leaf's role and prompt to the model and forwarding the response events.
package craft

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

// rootFrameID keys the synthetic parent used when the root itself is a leaf.
// Validated trees never use an empty ID.
const rootFrameID = ""

// EventStream is a pull-based sequence of response events. Recv returns
// io.EOF after the last event.
type EventStream interface {
	Recv() (llm.Event, error)
	Close() error
}

// Decoder starts a streaming request for one leaf.
type Decoder interface {
	Stream(ctx context.Context, req llm.Request) (EventStream, error)
}

// clientDecoder adapts an llm.Client to Decoder.
type clientDecoder struct {
	client *llm.Client
}

// NewClientDecoder returns a Decoder backed by client.
func NewClientDecoder(client *llm.Client) Decoder {
	return clientDecoder{client: client}
}

func (d clientDecoder) Stream(ctx context.Context, req llm.Request) (EventStream, error) {
	s, err := d.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Hooks observe leaf execution. Either field may be nil.
type Hooks struct {
	// OnStart is called before the leaf's request is sent.
	OnStart func(leaf *models.TaskNode)
	// OnFinish is called once the leaf's stream has completed, with its
	// final event.
	OnFinish func(leaf *models.TaskNode, final llm.Event)
}

// Options configures a Manager.
type Options struct {
	// Tools, when set, are offered to the model with every leaf and the
	// tool-call protocol is appended to the leaf's role.
	Tools []openai.Tool
	Hooks Hooks
}

// Manager walks a task tree depth first, executing one leaf per ExecuteNext.
// A Manager is not safe for concurrent use; leaves never run concurrently.
type Manager struct {
	root    *models.TaskNode
	nodes   map[string]*models.TaskNode
	stack   cursor
	decoder Decoder
	opts    Options
	log     zerolog.Logger
	// active is the leaf run that has not yet completed, if any.
	active *LeafRun
	// pinned holds the IDs of leaves given tool calls by SetCurrentToolCalls.
	// The model's batch never replaces those.
	pinned map[string]bool
}

// NewManager creates a manager positioned before the first leaf of root.
// The tree must have unique, non-empty IDs.
func NewManager(root *models.TaskNode, decoder Decoder, opts Options, log zerolog.Logger) (*Manager, error) {
	nodes, err := index(root)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		root:    root,
		nodes:   nodes,
		decoder: decoder,
		opts:    opts,
		log:     log.With().Str("component", "craft").Logger(),
		pinned:  make(map[string]bool),
	}

	for _, n := range nodes {
		if n.Status == "" {
			n.Status = models.TaskStatusPending
		}
	}

	if root.IsLeaf() {
		m.nodes[rootFrameID] = &models.TaskNode{Children: []*models.TaskNode{root}}
		m.stack = cursor{{nodeID: rootFrameID}}
	} else {
		m.stack = cursor{{nodeID: root.ID}}
	}
	return m, nil
}

// Root returns the task tree.
func (m *Manager) Root() *models.TaskNode {
	return m.root
}

// NextTaskInfo reports the leaf the next ExecuteNext would run, or nil if
// the tree is exhausted. It never changes the manager's position.
func (m *Manager) NextTaskInfo() *models.TaskNode {
	_, leaf := m.stack.clone().seek(m.nodes)
	return leaf
}

// Done reports whether every leaf has been executed.
func (m *Manager) Done() bool {
	return m.NextTaskInfo() == nil
}

// SetCurrentToolCalls attaches calls to the leaf NextTaskInfo reports.
// It does nothing when the tree is exhausted.
func (m *Manager) SetCurrentToolCalls(calls []models.ToolCall) {
	if leaf := m.NextTaskInfo(); leaf != nil {
		leaf.ToolCalls = calls
		m.pinned[leaf.ID] = true
	}
}

// SkipCompleted moves past leaves already marked completed, such as those
// of a tree saved by an earlier run. It stops at the first leaf still to do
// and returns the number of leaves skipped. A leaf that ended in an error is
// never marked completed, so it runs again.
func (m *Manager) SkipCompleted() int {
	if m.active != nil {
		_ = m.active.Close()
	}

	skipped := 0
	for {
		var leaf *models.TaskNode
		m.stack, leaf = m.stack.seek(m.nodes)
		if leaf == nil || !leaf.Completed {
			return skipped
		}
		leaf.Status = models.TaskStatusDone
		m.stack.advance()
		skipped++
	}
}

// ExecuteNext runs the next leaf. The request is sent on the first Recv.
// The returned stream yields nothing if the tree is exhausted.
//
// The position advances once the caller has received the leaf's final
// event and pulls again (or closes the stream). Closing the stream before
// the final event abandons the leaf; it runs again on the next call. A
// previous run still open is closed first.
func (m *Manager) ExecuteNext(ctx context.Context) *LeafRun {
	if m.active != nil {
		_ = m.active.Close()
	}

	var leaf *models.TaskNode
	m.stack, leaf = m.stack.seek(m.nodes)
	run := &LeafRun{m: m, ctx: ctx, leaf: leaf}
	if leaf != nil {
		m.active = run
	}
	return run
}

// ExecuteAll runs every remaining leaf in order and forwards all events.
func (m *Manager) ExecuteAll(ctx context.Context) *AllRun {
	return &AllRun{m: m, ctx: ctx}
}

func (m *Manager) request(leaf *models.TaskNode) llm.Request {
	req := llm.Request{System: leaf.Role, Prompt: leaf.Prompt}
	if len(m.opts.Tools) > 0 {
		req.System = llm.ToolCallSystemPrompt(leaf.Role, m.opts.Tools)
		req.Tools = m.opts.Tools
	}
	return req
}

// LeafRun streams the events of one leaf.
type LeafRun struct {
	m      *Manager
	ctx    context.Context
	leaf   *models.TaskNode
	stream EventStream

	started bool
	final   *llm.Event
	ended   bool
}

// Task returns the leaf being executed, or nil if the tree was exhausted.
func (r *LeafRun) Task() *models.TaskNode {
	return r.leaf
}

// Recv returns the next event of the leaf's response, unmodified.
func (r *LeafRun) Recv() (llm.Event, error) {
	if r.leaf == nil || r.ended {
		return llm.Event{}, io.EOF
	}
	if r.final != nil {
		r.complete()
		return llm.Event{}, io.EOF
	}
	if !r.started {
		r.start()
		if r.final != nil {
			return *r.final, nil
		}
	}

	ev, err := r.stream.Recv()
	if errors.Is(err, io.EOF) {
		// Stream ended without a final event.
		r.complete()
		return llm.Event{}, io.EOF
	}
	if err != nil {
		ev = llm.ErrorEvent(err)
	}
	if ev.Final {
		r.final = &ev
	}
	return ev, nil
}

// Close releases the leaf's response. If the final event was received the
// leaf is complete; otherwise it is abandoned.
func (r *LeafRun) Close() error {
	if r.leaf == nil || r.ended {
		return nil
	}
	if r.final != nil {
		r.complete()
		return nil
	}
	return r.abandon()
}

func (r *LeafRun) start() {
	r.started = true
	r.leaf.Status = models.TaskStatusRunning
	if !r.m.pinned[r.leaf.ID] {
		// Calls loaded with the tree belong to an earlier run.
		r.leaf.ToolCalls = nil
	}
	if r.m.opts.Hooks.OnStart != nil {
		r.m.opts.Hooks.OnStart(r.leaf)
	}
	r.m.log.Debug().Str("task", r.leaf.ID).Str("title", r.leaf.Title).Msg("executing leaf")

	stream, err := r.m.decoder.Stream(r.ctx, r.m.request(r.leaf))
	if err != nil {
		ev := llm.ErrorEvent(err)
		r.final = &ev
		return
	}
	r.stream = stream
}

func (r *LeafRun) complete() {
	r.ended = true
	if r.stream != nil {
		_ = r.stream.Close()
	}

	final := llm.TextEvent("", true)
	if r.final != nil {
		final = *r.final
	}

	r.leaf.Status = models.TaskStatusDone
	r.leaf.Completed = final.Type != llm.EventError
	if !r.leaf.Completed {
		r.leaf.Status = models.TaskStatusFailed
	}
	if final.Type == llm.EventToolCall && !r.m.pinned[r.leaf.ID] {
		r.leaf.ToolCalls = final.ToolCalls
	}

	r.m.stack.advance()
	if r.m.active == r {
		r.m.active = nil
	}
	r.m.log.Debug().Str("task", r.leaf.ID).Str("status", string(r.leaf.Status)).Msg("leaf finished")

	if r.m.opts.Hooks.OnFinish != nil {
		r.m.opts.Hooks.OnFinish(r.leaf, final)
	}
}

func (r *LeafRun) abandon() error {
	r.ended = true
	if r.m.active == r {
		r.m.active = nil
	}
	if r.leaf.Status == models.TaskStatusRunning {
		r.leaf.Status = models.TaskStatusPending
	}
	if r.stream != nil {
		return r.stream.Close()
	}
	return nil
}

// AllRun streams the events of every remaining leaf in order.
type AllRun struct {
	m       *Manager
	ctx     context.Context
	current *LeafRun
	ended   bool
}

// Task returns the leaf currently streaming, or nil between leaves.
func (a *AllRun) Task() *models.TaskNode {
	if a.current == nil {
		return nil
	}
	return a.current.Task()
}

// Recv returns the next event across all remaining leaves.
func (a *AllRun) Recv() (llm.Event, error) {
	for !a.ended {
		if a.current == nil {
			if a.m.Done() {
				a.ended = true
				break
			}
			a.current = a.m.ExecuteNext(a.ctx)
		}

		ev, err := a.current.Recv()
		if errors.Is(err, io.EOF) {
			a.current = nil
			continue
		}
		return ev, err
	}
	return llm.Event{}, io.EOF
}

// Close abandons the leaf in progress, if any.
func (a *AllRun) Close() error {
	a.ended = true
	if a.current == nil {
		return nil
	}
	err := a.current.Close()
	a.current = nil
	return err
}
