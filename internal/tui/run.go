package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

// LeafStartMsg is sent when a leaf starts executing.
type LeafStartMsg struct {
	ID    string
	Title string
}

// EventMsg carries one event of the running leaf's stream.
type EventMsg struct {
	Event llm.Event
}

// LeafDoneMsg is sent after a leaf's final event, with the status the leaf
// ended in.
type LeafDoneMsg struct {
	ID     string
	Status models.TaskStatus
	Final  llm.Event
}

// ToolResultMsg reports the outcome of one executed tool call.
type ToolResultMsg struct {
	Call    models.ToolCall
	Success bool
}

// NoticeMsg adds an informational line to the output.
type NoticeMsg struct {
	Text string
}

// RunDoneMsg signals that no more leaves will run.
type RunDoneMsg struct {
	Err     error
	Stopped bool
}

// RunOptions configures the run view.
type RunOptions struct {
	// Interactive shows an input line. Submitted lines go to OnPrompt.
	Interactive bool
	OnPrompt    func(text string)
	// OnStop is called when the user asks to stop or quits.
	OnStop func()
	// BufferSize caps the number of output lines kept.
	BufferSize int
}

type toolLine struct {
	call   models.ToolCall
	result *bool
}

// treeLine is one node of the tree as it was when the view was created.
type treeLine struct {
	id    string
	title string
	depth int
	leaf  bool
}

// RunModel is the bubbletea model for a task run. It copies the tree when
// created and afterwards learns leaf status only from messages, so the
// caller may keep mutating the tree while the view renders.
type RunModel struct {
	title   string
	lines   []treeLine
	status  map[string]models.TaskStatus
	current string
	opts    RunOptions

	spinner spinner.Model
	output  *Output
	input   *InputField
	tools   []toolLine

	leavesTotal int
	leavesDone  int

	width  int
	height int

	done     bool
	stopping bool
	quitting bool
	err      error
	stopped  bool

	titleStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
	doneStyle    lipgloss.Style
	failStyle    lipgloss.Style
	currentStyle lipgloss.Style
	panelStyle   lipgloss.Style
}

// NewRunModel creates a run view for root.
func NewRunModel(root *models.TaskNode, opts RunOptions) *RunModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &RunModel{
		title:   label(root),
		status:  make(map[string]models.TaskStatus),
		opts:    opts,
		spinner: sp,
		output:  NewOutput(opts.BufferSize),
		width:   80,
		height:  24,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),
		mutedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		currentStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		panelStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
	root.Walk(func(n *models.TaskNode, depth int) bool {
		m.lines = append(m.lines, treeLine{id: n.ID, title: label(n), depth: depth, leaf: n.IsLeaf()})
		if n.IsLeaf() {
			m.leavesTotal++
			if n.Completed {
				m.status[n.ID] = models.TaskStatusDone
				m.leavesDone++
			}
		}
		return true
	})
	if opts.Interactive {
		m.input = NewInputField()
	}
	return m
}

// NewRunProgram creates a program around a new run view.
func NewRunProgram(root *models.TaskNode, opts RunOptions) (*tea.Program, *RunModel) {
	m := NewRunModel(root, opts)
	return tea.NewProgram(m, tea.WithAltScreen()), m
}

// Init implements tea.Model.
func (m *RunModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.input != nil {
			m.input.SetWidth(msg.Width)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LeafStartMsg:
		m.current = msg.ID
		m.status[msg.ID] = models.TaskStatusRunning
		m.tools = nil
		title := msg.Title
		if title == "" {
			title = msg.ID
		}
		m.output.Line(m.currentStyle.Render("▶ " + title))

	case EventMsg:
		m.handleEvent(msg.Event)

	case LeafDoneMsg:
		m.output.Flush()
		if m.status[msg.ID] != models.TaskStatusDone && msg.Status == models.TaskStatusDone {
			m.leavesDone++
		}
		m.status[msg.ID] = msg.Status
		if m.current == msg.ID {
			m.current = ""
		}

	case ToolResultMsg:
		for i := range m.tools {
			if m.tools[i].result == nil && m.tools[i].call.Name == msg.Call.Name {
				ok := msg.Success
				m.tools[i].result = &ok
				break
			}
		}

	case NoticeMsg:
		m.output.Line(m.mutedStyle.Render(msg.Text))

	case PromptSubmittedMsg:
		m.output.Line(m.currentStyle.Render("> ") + msg.Text)
		if m.opts.OnPrompt != nil {
			m.opts.OnPrompt(msg.Text)
		}

	case RunDoneMsg:
		m.output.Flush()
		m.done = true
		m.current = ""
		m.err = msg.Err
		m.stopped = msg.Stopped
	}

	if m.input != nil && !m.done {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *RunModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	typing := m.input != nil && !m.done

	switch {
	case key == "ctrl+c" || (!typing && key == "q"):
		m.quitting = true
		m.requestStop()
		return m, tea.Quit
	case key == "ctrl+s" || (!typing && key == "s"):
		m.requestStop()
		return m, nil
	}

	if typing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *RunModel) requestStop() {
	if m.stopping || m.done {
		return
	}
	m.stopping = true
	if m.opts.OnStop != nil {
		m.opts.OnStop()
	}
}

func (m *RunModel) handleEvent(ev llm.Event) {
	switch ev.Type {
	case llm.EventText:
		m.output.Write(ev.Text)
	case llm.EventToolCall:
		m.output.Flush()
		for _, call := range ev.ToolCalls {
			m.tools = append(m.tools, toolLine{call: call})
		}
	case llm.EventError:
		m.output.Line(m.failStyle.Render("error: " + ev.Text))
	}
}

// Done reports whether the run finished.
func (m *RunModel) Done() bool {
	return m.done
}

// Err returns the error the run finished with, if any.
func (m *RunModel) Err() error {
	return m.err
}

// View implements tea.Model.
func (m *RunModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.titleStyle.Render(fmt.Sprintf("craft  %s  %d/%d leaves", m.title, m.leavesDone, m.leavesTotal)))
	b.WriteString("\n")

	tree := m.viewTree()
	b.WriteString(tree)
	b.WriteString("\n")

	if tools := m.viewTools(); tools != "" {
		b.WriteString(tools)
		b.WriteString("\n")
	}

	used := strings.Count(b.String(), "\n") + 4
	if m.input != nil {
		used += 3
	}
	rows := m.height - used
	if rows < 3 {
		rows = 3
	}
	b.WriteString(m.panelStyle.Width(max(m.width-2, 20)).Render(strings.Join(m.output.Tail(rows), "\n")))
	b.WriteString("\n")

	if m.input != nil && !m.done {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.viewFooter())
	return b.String()
}

func (m *RunModel) viewTree() string {
	lines := make([]string, 0, len(m.lines))
	for _, n := range m.lines {
		indent := strings.Repeat("  ", n.depth)
		current := n.id == m.current && m.current != ""
		var icon string
		switch {
		case !n.leaf:
			icon = m.mutedStyle.Render("▸")
		case current:
			icon = m.spinner.View()
		case m.status[n.id] == models.TaskStatusFailed:
			icon = m.failStyle.Render("✗")
		case m.status[n.id] == models.TaskStatusDone:
			icon = m.doneStyle.Render("✓")
		default:
			icon = m.mutedStyle.Render("·")
		}
		title := n.title
		if current {
			title = m.currentStyle.Render(title)
		}
		lines = append(lines, indent+icon+" "+title)
	}
	return strings.Join(lines, "\n")
}

func (m *RunModel) viewTools() string {
	if len(m.tools) == 0 {
		return ""
	}
	lines := []string{m.mutedStyle.Render("Tool calls:")}
	for _, t := range m.tools {
		mark := m.mutedStyle.Render("○")
		if t.result != nil {
			if *t.result {
				mark = m.doneStyle.Render("✓")
			} else {
				mark = m.failStyle.Render("✗")
			}
		}
		line := fmt.Sprintf("  %s %s", mark, t.call.Name)
		if t.call.HumanText != "" {
			line += m.mutedStyle.Render("  " + t.call.HumanText)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *RunModel) viewFooter() string {
	var status string
	switch {
	case m.done && m.err != nil:
		status = m.failStyle.Render("Run failed: " + m.err.Error())
	case m.done && m.stopped:
		status = m.mutedStyle.Render("Run stopped")
	case m.done:
		status = m.doneStyle.Render("Run complete")
	case m.stopping:
		status = m.mutedStyle.Render("Stopping after the current task...")
	case m.current != "":
		status = m.mutedStyle.Render("Running " + m.currentTitle())
	default:
		status = m.mutedStyle.Render("Waiting")
	}

	help := "q quit  s stop"
	if m.input != nil && !m.done {
		help = "ctrl+c quit  ctrl+s stop  enter send"
	}
	return status + "  " + m.mutedStyle.Render(help)
}

func (m *RunModel) currentTitle() string {
	for _, n := range m.lines {
		if n.id == m.current {
			return n.title
		}
	}
	return m.current
}

func label(n *models.TaskNode) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}
