package tools

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/internal/exec"
	"github.com/ShayCichocki/craft/internal/graph"
	"github.com/ShayCichocki/craft/pkg/models"
)

// Result is the outcome of one executed tool call.
type Result struct {
	Call    models.ToolCall
	Command string
	Success bool
	Logs    string
}

// Executor runs tool-call batches through a command runner.
type Executor struct {
	registry *Registry
	runner   exec.CommandRunner
	workDir  string
	out      io.Writer
	log      zerolog.Logger
}

// NewExecutor creates an executor. Command output is copied to out, which
// may be nil.
func NewExecutor(registry *Registry, runner exec.CommandRunner, workDir string, out io.Writer, log zerolog.Logger) *Executor {
	return &Executor{
		registry: registry,
		runner:   runner,
		workDir:  workDir,
		out:      out,
		log:      log.With().Str("component", "tools").Logger(),
	}
}

// Order returns the calls so that each tool runs after the tools it depends
// on. Dependencies that are not part of the batch are ignored. Calls that
// resolve to the same tool keep only the first occurrence.
func (e *Executor) Order(calls []models.ToolCall) ([]models.ToolCall, error) {
	byTool := make(map[string]models.ToolCall, len(calls))
	var order []string
	for _, call := range calls {
		t, ok := e.registry.Lookup(call.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		}
		if _, dup := byTool[t.Name]; dup {
			e.log.Debug().Str("tool", t.Name).Msg("dropping repeated tool call")
			continue
		}
		byTool[t.Name] = call
		order = append(order, t.Name)
	}

	nodes := make([]graph.Node, 0, len(order))
	for _, name := range order {
		t, _ := e.registry.Lookup(name)
		var deps []string
		for _, dep := range t.DependsOn {
			if _, present := byTool[dep]; present {
				deps = append(deps, dep)
			}
		}
		nodes = append(nodes, graph.Node{ID: name, DependsOn: deps})
	}

	g := graph.New()
	if err := g.Build(nodes); err != nil {
		return nil, fmt.Errorf("order tool calls: %w", err)
	}
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("order tool calls: %w", err)
	}

	ordered := make([]models.ToolCall, 0, len(sorted))
	for _, name := range sorted {
		ordered = append(ordered, byTool[name])
	}
	return ordered, nil
}

// Run executes the batch in dependency order and stops at the first
// failure. The results of every attempted call are returned.
func (e *Executor) Run(ctx context.Context, calls []models.ToolCall) ([]Result, error) {
	ordered, err := e.Order(calls)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ordered))
	for _, call := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		command, err := e.registry.Command(call)
		if err != nil {
			return results, fmt.Errorf("%s: %w", call.Name, err)
		}

		e.log.Info().Str("tool", call.Name).Str("command", command).Msg("running tool")
		if e.out != nil && call.HumanText != "" {
			fmt.Fprintf(e.out, "%s\n", call.HumanText)
		}

		res := e.runner.RunLogged(ctx, e.workDir, command, e.out)
		results = append(results, Result{Call: call, Command: command, Success: res.Success, Logs: res.Logs})
		if !res.Success {
			e.log.Warn().Str("tool", call.Name).Msg("tool failed")
			return results, fmt.Errorf("%s failed", call.Name)
		}
	}
	return results, nil
}
