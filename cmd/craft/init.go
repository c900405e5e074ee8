package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/config"
	"github.com/ShayCichocki/craft/internal/exec"
	"github.com/ShayCichocki/craft/internal/tools"
)

var (
	initForce       bool
	initWithConfig  bool
	initNoGitignore bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Prepare a directory for craft",
	Long: `Prepare a directory for use with craft.

This command:
  - Checks the Linera toolchain (cargo, rustc, protoc, linera)
  - Checks that a model endpoint and API token are configured
  - Creates the .craft directory for logs, history and signals
  - Adds .craft/ to .gitignore
  - Optionally writes a .craft.yaml template

The directory argument is optional and defaults to the current directory.

Examples:
  craft init                 # Initialize current directory
  craft init ./myapp         # Initialize specific directory
  craft init --with-config   # Also create .craft.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a .craft.yaml template")
	initCmd.Flags().BoolVar(&initNoGitignore, "no-gitignore", false, "Leave .gitignore alone")
}

// prerequisite is a command craft-driven projects need and the tool that
// installs it.
type prerequisite struct {
	command string
	tool    string
}

var prerequisites = []prerequisite{
	{command: "cargo", tool: tools.InstallRust},
	{command: "rustc", tool: tools.InstallRust},
	{command: "protoc", tool: tools.InstallProtoc},
	{command: "linera", tool: tools.InstallLineraSDK},
}

// checkPrerequisites reports each prerequisite and returns the install
// tools for the missing ones, without duplicates.
func checkPrerequisites(ctx context.Context, runner exec.CommandRunner) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, p := range prerequisites {
		if runner.Exists(ctx, p.command) {
			printStatus("✓", p.command+" found", color.FgGreen)
			continue
		}
		printStatus("⚠", p.command+" not found", color.FgYellow)
		if !seen[p.tool] {
			seen[p.tool] = true
			missing = append(missing, p.tool)
		}
	}
	return missing
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing craft in %s...\n\n", absPath)

	craftDir := filepath.Join(absPath, ".craft")
	if _, err := os.Stat(craftDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	missing := checkPrerequisites(cmd.Context(), exec.NewRunner())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokenSet := true
	if _, err := config.GetAPIToken(cfg); err != nil {
		tokenSet = false
		printStatus("⚠", "No API token configured (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "API token is set ("+string(config.GetAPITokenSource(cfg))+")", color.FgGreen)
	}
	urlSet := cfg.LLM.ModelURL != "" || cfg.LLM.Provider == "anthropic"
	if !urlSet {
		printStatus("⚠", "No model URL configured", color.FgYellow)
	}

	for _, sub := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(craftDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .craft/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .craft directory structure", color.FgGreen)

	if !initNoGitignore {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with craft entries", color.FgGreen)
	}

	if initWithConfig {
		if err := createProjectConfig(absPath); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
	}

	fmt.Printf("\n%s craft initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	step := 1
	if !urlSet || !tokenSet {
		fmt.Printf("  %d. Configure the model:\n", step)
		fmt.Println("     craft config modelUrl https://your-endpoint/v1/chat/completions")
		fmt.Println("     craft config modelName your-model")
		fmt.Println("     export CRAFT_API_TOKEN=your-token")
		fmt.Println()
		step++
	}
	if len(missing) > 0 {
		fmt.Printf("  %d. Install the missing toolchain:\n", step)
		batch := make([]string, 0, len(missing))
		for _, tool := range missing {
			batch = append(batch, fmt.Sprintf(`{"name":%q}`, tool))
		}
		fmt.Printf("     echo '[%s]' | craft tools run -\n", strings.Join(batch, ","))
		fmt.Println()
		step++
	}
	fmt.Printf("  %d. Plan and run:\n", step)
	fmt.Println("     craft plan \"your goal here\"")
	fmt.Println("     craft run tasks.yaml")
	return nil
}

// gitignoreEntries are the paths craft writes inside a project.
var gitignoreEntries = []string{
	".craft/",
}

// updateGitignore appends missing craft entries to .gitignore
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# craft\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig writes a commented .craft.yaml unless one exists.
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, config.ProjectConfigName)
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# craft project configuration
# This file overrides defaults from ~/.config/craft/config.yaml

# llm:
#   provider: openai
#   model_url: https://your-endpoint/v1/chat/completions
#   model_name: your-model
#   max_tokens: 4096

# linera:
#   sdk_version: v0.14.1

# tools:
#   policy: drop        # or reject
#   allowed: [install_rust, install_protoc, install_wasm_target, install_linera_sdk]

# logging:
#   level: info
`
	return os.WriteFile(configPath, []byte(template), 0644)
}
