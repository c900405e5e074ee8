package tools

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/craft/internal/exec"
	"github.com/ShayCichocki/craft/pkg/models"
)

// fakeRunner records commands and fails those containing failOn.
type fakeRunner struct {
	commands []string
	failOn   string
}

func (f *fakeRunner) Run(context.Context, string, string, ...string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRunner) RunShell(context.Context, string, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRunner) RunLogged(_ context.Context, _ string, command string, w io.Writer) exec.Result {
	f.commands = append(f.commands, command)
	if w != nil {
		io.WriteString(w, "ran "+command+"\n")
	}
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return exec.Result{Success: false, Logs: "boom"}
	}
	return exec.Result{Success: true, Logs: "ok"}
}

func (f *fakeRunner) Exists(context.Context, string) bool { return true }

func call(name string, args map[string]any) models.ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return models.ToolCall{Name: name, Arguments: args}
}

func TestRegistry_NamesAndAliases(t *testing.T) {
	r := NewRegistry(Env{GOOS: "linux"})

	want := []string{"install_cargo", "install_linera_sdk", "install_protoc", "install_rust", "install_wasm_target"}
	if got := r.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names = %v, want %v", got, want)
	}

	t1, ok1 := r.Lookup("install_cargo")
	t2, ok2 := r.Lookup(InstallRust)
	if !ok1 || !ok2 || t1 != t2 {
		t.Error("install_cargo should alias install_rust")
	}
	if _, ok := r.Lookup("rm_rf"); ok {
		t.Error("unknown tool resolved")
	}
}

func TestRegistry_Definitions(t *testing.T) {
	defs := NewRegistry(Env{}).Definitions()
	if len(defs) != 4 {
		t.Fatalf("got %d definitions, want 4", len(defs))
	}
	for _, d := range defs {
		if d.Function == nil || d.Function.Name == "" || d.Function.Description == "" {
			t.Errorf("incomplete definition %+v", d)
			continue
		}
		params, ok := d.Function.Parameters.(map[string]any)
		if !ok || params["type"] != "object" {
			t.Errorf("%s parameters = %v", d.Function.Name, d.Function.Parameters)
		}
	}
}

func TestRegistry_Restrict(t *testing.T) {
	r := NewRegistry(Env{})
	if err := r.Restrict([]string{"install_cargo", InstallProtoc}); err != nil {
		t.Fatalf("Restrict failed: %v", err)
	}
	if len(r.Tools()) != 2 {
		t.Errorf("got %d tools, want 2", len(r.Tools()))
	}
	if _, ok := r.Lookup(InstallLineraSDK); ok {
		t.Error("restricted tool still resolvable")
	}

	if err := NewRegistry(Env{}).Restrict([]string{"nope"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Restrict error = %v, want ErrUnknownTool", err)
	}
}

func TestRegistry_Command(t *testing.T) {
	linux := NewRegistry(Env{GOOS: "linux", SDKVersion: "v0.15.0"})
	windows := NewRegistry(Env{GOOS: "windows"})

	tests := []struct {
		name    string
		reg     *Registry
		call    models.ToolCall
		want    []string
		wantErr bool
	}{
		{
			name: "rust default version",
			reg:  linux,
			call: call("install_cargo", nil),
			want: []string{"sh.rustup.rs", "--default-toolchain 1.85.0"},
		},
		{
			name: "rust channel",
			reg:  linux,
			call: call(InstallRust, map[string]any{"channel": "nightly"}),
			want: []string{"--default-toolchain nightly"},
		},
		{
			name: "rust windows",
			reg:  windows,
			call: call(InstallRust, map[string]any{"version": "1.80.0"}),
			want: []string{"win.rustup.rs", "1.80.0"},
		},
		{
			name: "wasm target",
			reg:  linux,
			call: call(InstallWasmTarget, map[string]any{"rust_version": "1.85.0"}),
			want: []string{"rustup target add wasm32-unknown-unknown --toolchain 1.85.0"},
		},
		{
			name: "protoc default",
			reg:  linux,
			call: call(InstallProtoc, nil),
			want: []string{"v3.21.7/protoc-3.21.7-linux-x86_64.zip", "unzip -o"},
		},
		{
			name: "protoc macos",
			reg:  linux,
			call: call(InstallProtoc, map[string]any{"version": "v25.1", "platform": "macos"}),
			want: []string{"protoc-25.1-osx-universal_binary.zip"},
		},
		{
			name: "sdk uses env version",
			reg:  linux,
			call: call(InstallLineraSDK, nil),
			want: []string{"linera-storage-service@0.15.0", "linera-service@0.15.0"},
		},
		{
			name: "sdk with examples",
			reg:  linux,
			call: call(InstallLineraSDK, map[string]any{"version": "v0.14.1", "withExamples": true}),
			want: []string{"linera-service@0.14.1", "git clone --depth 1 --branch v0.14.1"},
		},
		{
			name:    "injection rejected",
			reg:     linux,
			call:    call(InstallRust, map[string]any{"version": "1.0; rm -rf /"}),
			wantErr: true,
		},
		{
			name:    "bad platform rejected",
			reg:     linux,
			call:    call(InstallProtoc, map[string]any{"platform": "$(whoami)"}),
			wantErr: true,
		},
		{
			name:    "unknown tool",
			reg:     linux,
			call:    call("rm_rf", nil),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.reg.Command(tt.call)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Command = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestExecutor_OrderFollowsDependencies(t *testing.T) {
	e := NewExecutor(NewRegistry(Env{GOOS: "linux"}), &fakeRunner{}, "", nil, zerolog.Nop())

	ordered, err := e.Order([]models.ToolCall{
		call(InstallLineraSDK, nil),
		call(InstallWasmTarget, nil),
		call(InstallProtoc, nil),
		call("install_cargo", nil),
		call(InstallRust, nil),
	})
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}

	var names []string
	for _, c := range ordered {
		names = append(names, c.Name)
	}
	want := "install_cargo,install_protoc,install_wasm_target,install_linera_sdk"
	if strings.Join(names, ",") != want {
		t.Errorf("order = %v, want %s", names, want)
	}
}

func TestExecutor_OrderUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry(Env{}), &fakeRunner{}, "", nil, zerolog.Nop())
	if _, err := e.Order([]models.ToolCall{call("rm_rf", nil)}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Order error = %v, want ErrUnknownTool", err)
	}
}

func TestExecutor_Run(t *testing.T) {
	runner := &fakeRunner{}
	var out bytes.Buffer
	e := NewExecutor(NewRegistry(Env{GOOS: "linux"}), runner, "/work", &out, zerolog.Nop())

	sdk := call(InstallLineraSDK, nil)
	sdk.HumanText = "Installing the Linera SDK"
	results, err := e.Run(context.Background(), []models.ToolCall{sdk, call(InstallRust, nil)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 2 || results[0].Call.Name != InstallRust || results[1].Call.Name != InstallLineraSDK {
		t.Fatalf("results = %+v", results)
	}
	for _, r := range results {
		if !r.Success || r.Command == "" {
			t.Errorf("result %+v", r)
		}
	}
	if !strings.Contains(out.String(), "Installing the Linera SDK") {
		t.Errorf("human text not printed: %q", out.String())
	}
}

func TestExecutor_RunStopsAtFirstFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "protoc"}
	e := NewExecutor(NewRegistry(Env{GOOS: "linux"}), runner, "", nil, zerolog.Nop())

	results, err := e.Run(context.Background(), []models.ToolCall{
		call(InstallRust, nil), call(InstallProtoc, nil), call(InstallLineraSDK, nil),
	})
	if err == nil {
		t.Fatal("Run should fail")
	}
	if len(results) != 2 || results[1].Success {
		t.Errorf("results = %+v", results)
	}
	if len(runner.commands) != 2 {
		t.Errorf("ran %d commands, want 2", len(runner.commands))
	}
}

func TestExecutor_RunCanceled(t *testing.T) {
	runner := &fakeRunner{}
	e := NewExecutor(NewRegistry(Env{}), runner, "", nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, []models.ToolCall{call(InstallRust, nil)}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if len(runner.commands) != 0 {
		t.Error("command ran after cancel")
	}
}

func TestRegistry_WindowsCommands(t *testing.T) {
	r := NewRegistry(Env{GOOS: "windows"})

	tests := []struct {
		name string
		call models.ToolCall
		want string
	}{
		{
			name: "rust",
			call: call(InstallRust, map[string]any{"version": "1.80.0"}),
			want: `$ErrorActionPreference = 'Stop'; iwr https://win.rustup.rs -UseBasicParsing -OutFile rustup-init.exe; .\rustup-init.exe -y --default-toolchain 1.80.0`,
		},
		{
			name: "protoc",
			call: call(InstallProtoc, nil),
			want: `$ErrorActionPreference = 'Stop'; ` +
				`iwr https://github.com/protocolbuffers/protobuf/releases/download/v3.21.7/protoc-3.21.7-win64.zip -UseBasicParsing -OutFile protoc-3.21.7-win64.zip; ` +
				`Expand-Archive -Force protoc-3.21.7-win64.zip "$env:USERPROFILE\protoc"; ` +
				`Remove-Item protoc-3.21.7-win64.zip`,
		},
		{
			name: "sdk",
			call: call(InstallLineraSDK, nil),
			want: `cargo install --locked linera-storage-service@0.14.1; if ($LASTEXITCODE -ne 0) { exit $LASTEXITCODE }; cargo install --locked linera-service@0.14.1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Command(tt.call)
			if err != nil {
				t.Fatalf("Command failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Command =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}
