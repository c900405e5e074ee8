// Package tools defines the installable toolchain tools the model may call
// and runs them through the command runner.
package tools

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ShayCichocki/craft/pkg/models"
)

// Default versions used when a call omits them.
const (
	DefaultRustVersion   = "1.85.0"
	DefaultProtocVersion = "3.21.7"
	DefaultSDKVersion    = "v0.14.1"
)

// Tool names.
const (
	InstallRust       = "install_rust"
	InstallProtoc     = "install_protoc"
	InstallWasmTarget = "install_wasm_target"
	InstallLineraSDK  = "install_linera_sdk"
)

// ErrUnknownTool is returned for a call whose name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Env holds the platform facts and defaults commands are built from.
type Env struct {
	// GOOS selects the command flavor. Empty uses runtime.GOOS.
	GOOS string
	// SDKVersion is the Linera SDK version used when a call omits one.
	SDKVersion string
}

// Tool is a registered tool definition.
type Tool struct {
	Name        string
	Description string
	// Aliases are alternative names accepted from the model.
	Aliases []string
	// Parameters is the JSON schema of the arguments.
	Parameters map[string]any
	// DependsOn lists tools that must run first when present in a batch.
	DependsOn []string

	command func(call models.ToolCall, env Env) (string, error)
}

// Registry is the allow-list of tools.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
	env    Env
}

// NewRegistry creates a registry with the built-in tools.
func NewRegistry(env Env) *Registry {
	if env.GOOS == "" {
		env.GOOS = runtime.GOOS
	}
	if env.SDKVersion == "" {
		env.SDKVersion = DefaultSDKVersion
	}

	r := &Registry{byName: make(map[string]*Tool), env: env}
	for _, t := range builtinTools() {
		r.register(t)
	}
	return r
}

func (r *Registry) register(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
	for _, alias := range t.Aliases {
		r.byName[alias] = t
	}
}

// Lookup resolves a tool by name or alias.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns every accepted name, aliases included, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Restrict removes every tool not named in allowed. Unknown names in
// allowed are reported as an error. An empty list keeps everything.
func (r *Registry) Restrict(allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}

	keep := make(map[*Tool]bool)
	for _, name := range allowed {
		t, ok := r.byName[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		keep[t] = true
	}

	restricted := &Registry{byName: make(map[string]*Tool), env: r.env}
	for _, t := range r.tools {
		if keep[t] {
			restricted.register(t)
		}
	}
	*r = *restricted
	return nil
}

// Definitions returns the tools as function definitions for a request.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

// Command builds the shell command line for call: a POSIX sh command, or a
// PowerShell script on Windows.
func (r *Registry) Command(call models.ToolCall) (string, error) {
	t, ok := r.Lookup(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	return t.command(call, r.env)
}

func builtinTools() []*Tool {
	return []*Tool{
		{
			Name: InstallRust,
			Description: "Installs the Rust programming language and its toolchain (rustup, cargo, rustc). " +
				"Use it to set up Rust for Linera development or to switch to a specific version or channel.",
			Aliases: []string{"install_cargo"},
			Parameters: schema(map[string]any{
				"version": prop("string", "Rust version to install, e.g. "+DefaultRustVersion),
				"channel": map[string]any{
					"type":        "string",
					"description": "Rust release channel, used when no version is given",
					"enum":        []string{"stable", "beta", "nightly"},
				},
			}, "version"),
			command: rustCommand,
		},
		{
			Name:        InstallWasmTarget,
			Description: "Installs the wasm32-unknown-unknown target for Rust compilation.",
			Parameters: schema(map[string]any{
				"rust_version": prop("string", "The Rust version to install the target for, e.g. "+DefaultRustVersion),
			}, "rust_version"),
			DependsOn: []string{InstallRust},
			command:   wasmTargetCommand,
		},
		{
			Name:        InstallProtoc,
			Description: "Installs the Protocol Buffers compiler (protoc) with the specified version.",
			Parameters: schema(map[string]any{
				"version": prop("string", "Version of protoc to install, e.g. "+DefaultProtocVersion),
				"platform": map[string]any{
					"type":        "string",
					"description": "Target platform for installation",
					"enum":        []string{"linux", "windows", "macos"},
				},
			}, "version"),
			command: protocCommand,
		},
		{
			Name:        InstallLineraSDK,
			Description: "Installs the specified version of the Linera SDK (linera-service and linera-storage-service).",
			Parameters: schema(map[string]any{
				"version": prop("string", "Linera SDK version, e.g. "+DefaultSDKVersion),
				"withExamples": map[string]any{
					"type":        "boolean",
					"description": "Whether to clone the example projects alongside the SDK",
					"default":     false,
				},
			}, "version"),
			DependsOn: []string{InstallRust, InstallProtoc, InstallWasmTarget},
			command:   lineraSDKCommand,
		},
	}
}

func schema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func rustCommand(call models.ToolCall, env Env) (string, error) {
	toolchain := call.StringArg("version", "")
	if toolchain == "" {
		toolchain = call.StringArg("channel", DefaultRustVersion)
	}
	if err := checkVersion(toolchain); err != nil {
		return "", err
	}

	if env.GOOS == "windows" {
		return fmt.Sprintf(`$ErrorActionPreference = 'Stop'; iwr https://win.rustup.rs -UseBasicParsing -OutFile rustup-init.exe; .\rustup-init.exe -y --default-toolchain %s`, toolchain), nil
	}
	return fmt.Sprintf("curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y --default-toolchain %s", toolchain), nil
}

func wasmTargetCommand(call models.ToolCall, _ Env) (string, error) {
	version := call.StringArg("rust_version", DefaultRustVersion)
	if err := checkVersion(version); err != nil {
		return "", err
	}
	return fmt.Sprintf("rustup target add wasm32-unknown-unknown --toolchain %s", version), nil
}

// protocAssets maps platform names to protoc release asset suffixes.
var protocAssets = map[string]string{
	"linux":   "linux-x86_64",
	"macos":   "osx-universal_binary",
	"darwin":  "osx-universal_binary",
	"windows": "win64",
}

func protocCommand(call models.ToolCall, env Env) (string, error) {
	version := strings.TrimPrefix(call.StringArg("version", DefaultProtocVersion), "v")
	if err := checkVersion(version); err != nil {
		return "", err
	}

	platform := call.StringArg("platform", env.GOOS)
	asset, ok := protocAssets[platform]
	if !ok {
		if err := checkVersion(platform); err != nil {
			return "", fmt.Errorf("invalid platform %q", platform)
		}
		asset = platform
	}

	zip := fmt.Sprintf("protoc-%s-%s.zip", version, asset)
	url := fmt.Sprintf("https://github.com/protocolbuffers/protobuf/releases/download/v%s/%s", version, zip)
	if env.GOOS == "windows" {
		return fmt.Sprintf(`$ErrorActionPreference = 'Stop'; iwr %s -UseBasicParsing -OutFile %s; Expand-Archive -Force %s "$env:USERPROFILE\protoc"; Remove-Item %s`, url, zip, zip, zip), nil
	}
	return fmt.Sprintf(`curl -sSLO %s && unzip -o %s -d "$HOME/.local" && rm -f %s`, url, zip, zip), nil
}

func lineraSDKCommand(call models.ToolCall, env Env) (string, error) {
	version := call.StringArg("version", env.SDKVersion)
	if err := checkVersion(version); err != nil {
		return "", err
	}
	crate := strings.TrimPrefix(version, "v")

	cmds := []string{
		"cargo install --locked linera-storage-service@" + crate,
		"cargo install --locked linera-service@" + crate,
	}
	if call.BoolArg("withExamples", false) {
		tag := "v" + crate
		cmds = append(cmds, fmt.Sprintf("git clone --depth 1 --branch %s https://github.com/linera-io/linera-protocol.git linera-protocol-%s", tag, tag))
	}
	return chain(env.GOOS, cmds...), nil
}

// chain joins commands so that the first failure stops the rest. Windows
// commands are PowerShell scripts, which have no && operator.
func chain(goos string, cmds ...string) string {
	if goos == "windows" {
		return strings.Join(cmds, "; if ($LASTEXITCODE -ne 0) { exit $LASTEXITCODE }; ")
	}
	return strings.Join(cmds, " && ")
}

// checkVersion rejects values that could break out of the command line.
func checkVersion(v string) error {
	if v == "" {
		return errors.New("version is empty")
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_' || r == '+':
		default:
			return fmt.Errorf("invalid version %q", v)
		}
	}
	return nil
}
