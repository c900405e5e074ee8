package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/ShayCichocki/craft/internal/config"
	"github.com/ShayCichocki/craft/internal/exec"
	"github.com/ShayCichocki/craft/internal/llm"
	"github.com/ShayCichocki/craft/internal/logging"
	"github.com/ShayCichocki/craft/internal/state"
	"github.com/ShayCichocki/craft/internal/tools"
	"github.com/ShayCichocki/craft/pkg/models"
)

// app bundles the collaborators every model-facing command needs.
type app struct {
	cfg      *config.Config
	root     string
	log      *logging.Logger
	client   *llm.Client
	registry *tools.Registry
	runner   exec.CommandRunner
}

// newApp loads configuration and wires the logger, tool registry and
// model client. A missing endpoint or token is not an error here; the
// client reports it on the first request.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	root := cfg.ProjectRoot()

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(tools.Env{SDKVersion: cfg.Linera.SDKVersion})
	if err := registry.Restrict(cfg.Tools.Allowed); err != nil {
		log.Close()
		return nil, fmt.Errorf("tools.allowed: %w", err)
	}

	settings, err := cfg.LLMSettings(registry.Names())
	if err != nil {
		log.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		root:     root,
		log:      log,
		client:   llm.NewClient(settings, log.Logger),
		registry: registry,
		runner:   exec.NewRunner(),
	}, nil
}

// newLogger opens the configured log file, or the project default.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if cfg.Logging.File != "" {
		return logging.New(cfg.Logging.File, level)
	}
	return logging.NewForProject(cfg.ProjectRoot(), level), nil
}

func (a *app) Close() {
	a.log.Close()
}

// executor runs tool calls in the project root, echoing output to out.
func (a *app) executor(out io.Writer) *tools.Executor {
	return tools.NewExecutor(a.registry, a.runner, a.root, out, a.log.Logger)
}

// openHistory opens the run history and marks runs left behind by dead
// processes as interrupted.
func (a *app) openHistory() (*state.DB, error) {
	db, err := state.Open(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	if runs, err := db.RecoverInterrupted(); err != nil {
		a.log.Warn().Err(err).Msg("recover interrupted runs")
	} else if len(runs) > 0 {
		a.log.Info().Int("count", len(runs)).Msg("marked interrupted runs")
	}
	return db, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// printToolCalls lists a tool-call batch.
func printToolCalls(calls []models.ToolCall) {
	if len(calls) == 0 {
		printStatus("-", "No tool calls", color.FgYellow)
		return
	}
	for _, call := range calls {
		line := call.Name
		if len(call.Arguments) > 0 {
			line += fmt.Sprintf(" %v", call.Arguments)
		}
		if call.HumanText != "" {
			line += color.New(color.Faint).Sprint("  " + call.HumanText)
		}
		printStatus("→", line, color.FgCyan)
	}
}
