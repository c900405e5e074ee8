package models

// TaskStatus represents the execution state of a task node.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the leaf is currently being executed.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the leaf stream ended with a text or tool call result.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the leaf stream ended with an error event.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// FileOperationType is the kind of change a task plans to make to a file.
type FileOperationType string

const (
	FileOpCreate FileOperationType = "create"
	FileOpModify FileOperationType = "modify"
	FileOpDelete FileOperationType = "delete"
	FileOpMove   FileOperationType = "move"
)

// FileOperation describes a planned file change attached to a task.
type FileOperation struct {
	Type       FileOperationType `json:"type" yaml:"type"`
	SourcePath string            `json:"sourcePath" yaml:"sourcePath"`
	TargetPath string            `json:"targetPath,omitempty" yaml:"targetPath,omitempty"`
}

// TaskNode is a node in a task tree. A node without children is a leaf and
// is the unit of execution.
type TaskNode struct {
	// ID is unique across the whole tree.
	ID string `json:"id" yaml:"id"`
	// Title is the short description shown to the user.
	Title string `json:"title" yaml:"title"`
	// Completed is set once the leaf has been executed.
	Completed bool `json:"completed" yaml:"completed"`
	// Role is the system prompt sent with the leaf's prompt.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	// Prompt is the user prompt sent when the leaf is executed.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	// FileOperations lists the file changes the task is expected to make.
	FileOperations []FileOperation `json:"fileOperations,omitempty" yaml:"fileOperations,omitempty"`
	// Children are executed in order, depth first.
	Children []*TaskNode `json:"subTasks,omitempty" yaml:"subTasks,omitempty"`
	// ToolCalls is written once after the leaf's execution produced a batch.
	ToolCalls []ToolCall `json:"toolCalls,omitempty" yaml:"toolCalls,omitempty"`
	// Status is the runtime state. It is not part of the tree definition.
	Status TaskStatus `json:"-" yaml:"-"`
}

// IsLeaf reports whether the node has no children. An explicitly empty
// children list is a leaf too.
func (n *TaskNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits n and all of its descendants in pre-order, left to right.
// Returning false from fn stops the walk.
func (n *TaskNode) Walk(fn func(node *TaskNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *TaskNode) walk(fn func(node *TaskNode, depth int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for _, child := range n.Children {
		if child == nil {
			continue
		}
		if !child.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// Leaves returns the leaves under n in execution order.
func (n *TaskNode) Leaves() []*TaskNode {
	var leaves []*TaskNode
	n.Walk(func(node *TaskNode, _ int) bool {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
		return true
	})
	return leaves
}
