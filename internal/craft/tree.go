package craft

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/craft/pkg/models"
)

// ErrDuplicateID is returned when two nodes of a tree share an ID.
var ErrDuplicateID = errors.New("duplicate task id")

// ErrEmptyID is returned when a node has no ID.
var ErrEmptyID = errors.New("task id is empty")

// Validate checks that every node has a non-empty ID unique across the tree.
func Validate(root *models.TaskNode) error {
	_, err := index(root)
	return err
}

// index maps every node of the tree by ID.
func index(root *models.TaskNode) (map[string]*models.TaskNode, error) {
	if root == nil {
		return nil, errors.New("task tree is nil")
	}

	nodes := make(map[string]*models.TaskNode)
	var err error
	root.Walk(func(n *models.TaskNode, _ int) bool {
		id := n.ID
		if strings.TrimSpace(id) == "" {
			err = fmt.Errorf("%w (title %q)", ErrEmptyID, n.Title)
			return false
		}
		if _, exists := nodes[id]; exists {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, id)
			return false
		}
		nodes[id] = n
		return true
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Find returns the node with the given ID, or nil.
func Find(root *models.TaskNode, id string) *models.TaskNode {
	var found *models.TaskNode
	root.Walk(func(n *models.TaskNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// LoadTree reads a task tree from a YAML or JSON file. The format is chosen
// by extension; anything other than .json is parsed as YAML.
func LoadTree(path string) (*models.TaskNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	root, err := ParseTree(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// ParseTree decodes and validates a task tree.
func ParseTree(data []byte, isJSON bool) (*models.TaskNode, error) {
	var root models.TaskNode
	if isJSON {
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse task tree: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse task tree: %w", err)
		}
	}

	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// SaveTree writes the tree to path as YAML, or JSON for a .json extension.
func SaveTree(path string, root *models.TaskNode) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(root, "", "  ")
	} else {
		data, err = yaml.Marshal(root)
	}
	if err != nil {
		return fmt.Errorf("marshal task tree: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}

// Reset clears the progress a saved tree carries: completed marks and the
// tool calls of earlier runs.
func Reset(root *models.TaskNode) {
	root.Walk(func(n *models.TaskNode, _ int) bool {
		n.Completed = false
		n.ToolCalls = nil
		return true
	})
}

// Render returns an indented outline of the tree. Completed nodes are
// marked and the current leaf, if any, is flagged with an arrow.
func Render(root *models.TaskNode, current *models.TaskNode) string {
	var sb strings.Builder
	root.Walk(func(n *models.TaskNode, depth int) bool {
		marker := "  "
		if current != nil && n == current {
			marker = "> "
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(marker)
		sb.WriteString(n.Title)
		if n.Title == "" {
			sb.WriteString(n.ID)
		}
		if n.Completed {
			sb.WriteString(" (Completed)")
		}
		sb.WriteByte('\n')
		for _, op := range n.FileOperations {
			sb.WriteString(strings.Repeat("  ", depth+2))
			sb.WriteString(string(op.Type))
			sb.WriteByte(' ')
			sb.WriteString(op.SourcePath)
			if op.TargetPath != "" {
				sb.WriteString(" -> ")
				sb.WriteString(op.TargetPath)
			}
			sb.WriteByte('\n')
		}
		return true
	})
	return sb.String()
}
