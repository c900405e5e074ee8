package craft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/pkg/models"
)

// DefaultRole is the system role given to planned tasks that lack one.
const DefaultRole = "You're a Linera blockchain developer"

const plannerRole = "You are a senior engineer who breaks software goals into ordered, nested tasks."

// planningPrompt is the prompt template for building a task tree.
const planningPrompt = `Break this goal into a tree of tasks. Leaves are executed one at a time,
depth first, in the order given, by a model that receives the leaf's "role" as
its system prompt and the leaf's "prompt" as the user message.

Goal:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "id": "1",
  "title": "Short title of the whole goal",
  "subTasks": [
    {
      "id": "1-1",
      "title": "Short task title",
      "role": "You're a backend developer",
      "prompt": "What the model should do for this task",
      "fileOperations": [
        {"type": "create|modify|delete|move", "sourcePath": "src/lib.rs", "targetPath": ""}
      ],
      "subTasks": []
    }
  ]
}

Guidelines:
- Use "subTasks": [] for a task that should be executed directly
- Give every task a unique id; nested ids extend the parent's id ("1-2-1")
- Prompts must be self-contained: the executing model sees nothing else
- Order siblings so that earlier tasks produce what later ones need`

// Completer sends single-shot structured requests.
type Completer interface {
	CompleteJSON(ctx context.Context, req llm.Request, target any) error
}

// Planner turns a goal into a task tree with one model call.
type Planner struct {
	llm Completer
}

// NewPlanner creates a planner.
func NewPlanner(c Completer) *Planner {
	return &Planner{llm: c}
}

// Plan asks the model for a task tree and normalizes it.
func (p *Planner) Plan(ctx context.Context, goal string) (*models.TaskNode, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, errors.New("goal is empty")
	}

	var root models.TaskNode
	req := llm.Request{System: plannerRole, Prompt: fmt.Sprintf(planningPrompt, goal)}
	if err := p.llm.CompleteJSON(ctx, req, &root); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	if root.Title == "" {
		root.Title = goal
	}
	Normalize(&root)
	if root.IsLeaf() {
		return nil, errors.New("plan: model returned no tasks")
	}
	if err := Validate(&root); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &root, nil
}

// Normalize prepares a tree for execution: blank or repeated IDs are
// replaced with fresh ones, leaves without a role get DefaultRole, leaves
// without a prompt use their title, and nil children are removed.
func Normalize(root *models.TaskNode) {
	seen := make(map[string]bool)
	root.Walk(func(n *models.TaskNode, _ int) bool {
		n.ID = strings.TrimSpace(n.ID)
		if n.ID == "" || seen[n.ID] {
			n.ID = uuid.New().String()
		}
		seen[n.ID] = true

		children := n.Children[:0]
		for _, c := range n.Children {
			if c != nil {
				children = append(children, c)
			}
		}
		n.Children = children

		if n.IsLeaf() {
			if strings.TrimSpace(n.Role) == "" {
				n.Role = DefaultRole
			}
			if strings.TrimSpace(n.Prompt) == "" {
				n.Prompt = n.Title
			}
		}
		return true
	})
}
