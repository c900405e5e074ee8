package models

import (
	"reflect"
	"testing"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"running is valid", TaskStatusRunning, true},
		{"done is valid", TaskStatusDone, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("blocked"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func sampleTree() *TaskNode {
	return &TaskNode{
		ID: "root",
		Children: []*TaskNode{
			{ID: "a"},
			{ID: "b", Children: []*TaskNode{
				{ID: "b1"},
				{ID: "b2", Children: []*TaskNode{}},
			}},
		},
	}
}

func TestTaskNode_IsLeaf(t *testing.T) {
	root := sampleTree()

	if root.IsLeaf() {
		t.Error("root with children should not be a leaf")
	}
	if !root.Children[0].IsLeaf() {
		t.Error("node with nil children should be a leaf")
	}
	if !root.Children[1].Children[1].IsLeaf() {
		t.Error("node with empty children should be a leaf")
	}
}

func TestTaskNode_WalkPreOrder(t *testing.T) {
	var ids []string
	var depths []int
	sampleTree().Walk(func(n *TaskNode, depth int) bool {
		ids = append(ids, n.ID)
		depths = append(depths, depth)
		return true
	})

	wantIDs := []string{"root", "a", "b", "b1", "b2"}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Errorf("Walk order = %v, want %v", ids, wantIDs)
	}
	wantDepths := []int{0, 1, 1, 2, 2}
	if !reflect.DeepEqual(depths, wantDepths) {
		t.Errorf("Walk depths = %v, want %v", depths, wantDepths)
	}
}

func TestTaskNode_WalkStops(t *testing.T) {
	var visited int
	sampleTree().Walk(func(n *TaskNode, _ int) bool {
		visited++
		return n.ID != "b"
	})
	if visited != 3 {
		t.Errorf("visited = %d, want 3", visited)
	}
}

func TestTaskNode_Leaves(t *testing.T) {
	var ids []string
	for _, leaf := range sampleTree().Leaves() {
		ids = append(ids, leaf.ID)
	}
	want := []string{"a", "b1", "b2"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Leaves() = %v, want %v", ids, want)
	}
}

func TestToolCall_Args(t *testing.T) {
	call := ToolCall{
		Name: "install_linera_sdk",
		Arguments: map[string]any{
			"version":      "v0.14.1",
			"withExamples": true,
			"blank":        "  ",
			"flag":         "false",
			"count":        3,
		},
	}

	if got := call.StringArg("version", "x"); got != "v0.14.1" {
		t.Errorf("StringArg(version) = %q", got)
	}
	if got := call.StringArg("blank", "def"); got != "def" {
		t.Errorf("StringArg(blank) = %q, want default", got)
	}
	if got := call.StringArg("count", "def"); got != "def" {
		t.Errorf("StringArg(count) = %q, want default", got)
	}
	if !call.BoolArg("withExamples", false) {
		t.Error("BoolArg(withExamples) should be true")
	}
	if call.BoolArg("flag", true) {
		t.Error("BoolArg(flag) should parse string false")
	}
	if !call.BoolArg("missing", true) {
		t.Error("BoolArg(missing) should return default")
	}
}
