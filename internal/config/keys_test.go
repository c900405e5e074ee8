package config

import (
	"errors"
	"testing"
)

func TestGetAPIToken(t *testing.T) {
	tests := []struct {
		name       string
		craftEnv   string
		anthropic  string
		cfg        *Config
		want       string
		wantSource TokenSource
		wantErr    error
	}{
		{
			name:       "from CRAFT_API_TOKEN",
			craftEnv:   "env-token",
			cfg:        &Config{LLM: LLMConfig{APIToken: "cfg-token"}},
			want:       "env-token",
			wantSource: TokenSourceEnv,
		},
		{
			name:       "from config",
			cfg:        &Config{LLM: LLMConfig{APIToken: "cfg-token"}},
			want:       "cfg-token",
			wantSource: TokenSourceConfig,
		},
		{
			name:       "anthropic key for anthropic provider",
			anthropic:  "sk-ant-xyz",
			cfg:        &Config{LLM: LLMConfig{Provider: "anthropic"}},
			want:       "sk-ant-xyz",
			wantSource: TokenSourceEnv,
		},
		{
			name:       "anthropic key ignored for openai provider",
			anthropic:  "sk-ant-xyz",
			cfg:        &Config{LLM: LLMConfig{Provider: "openai"}},
			wantSource: TokenSourceNone,
			wantErr:    ErrNoAPIToken,
		},
		{
			name:       "unexpanded reference",
			cfg:        &Config{LLM: LLMConfig{APIToken: "${CRAFT_UNSET_TOKEN_VAR}"}},
			wantSource: TokenSourceNone,
			wantErr:    ErrNoAPIToken,
		},
		{
			name:       "nil config",
			wantSource: TokenSourceNone,
			wantErr:    ErrNoAPIToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CRAFT_API_TOKEN", tt.craftEnv)
			t.Setenv("ANTHROPIC_API_KEY", tt.anthropic)
			t.Setenv("CRAFT_UNSET_TOKEN_VAR", "")

			got, err := GetAPIToken(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
			if src := GetAPITokenSource(tt.cfg); src != tt.wantSource {
				t.Errorf("source = %q, want %q", src, tt.wantSource)
			}
		})
	}
}

func TestMaskAPIToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-abcdefghijklmnop", "sk-a...mnop"},
	}
	for _, tt := range tests {
		if got := MaskAPIToken(tt.token); got != tt.want {
			t.Errorf("MaskAPIToken(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := Set(cfg, "modelUrl", "https://a.example.com"); err != nil {
		t.Fatalf("Set modelUrl: %v", err)
	}
	if got, _ := Get(cfg, "llm.model_url"); got != "https://a.example.com" {
		t.Errorf("llm.model_url = %q", got)
	}

	if err := Set(cfg, "sdkVersion", "v0.15.0"); err != nil {
		t.Fatal(err)
	}
	if cfg.Linera.SDKVersion != "v0.15.0" {
		t.Errorf("sdk version = %q", cfg.Linera.SDKVersion)
	}

	if err := Set(cfg, "tools.allowed", "install_rust, install_protoc,"); err != nil {
		t.Fatal(err)
	}
	if got, _ := Get(cfg, "tools.allowed"); got != "install_rust,install_protoc" {
		t.Errorf("tools.allowed = %q", got)
	}

	if err := Set(cfg, "llm.max_tokens", "1024"); err != nil || cfg.LLM.MaxTokens != 1024 {
		t.Errorf("max_tokens err=%v value=%d", err, cfg.LLM.MaxTokens)
	}

	invalid := []struct{ key, value string }{
		{"llm.max_tokens", "lots"},
		{"llm.bedrock", "maybe"},
		{"tools.policy", "ignore"},
	}
	for _, tt := range invalid {
		if err := Set(cfg, tt.key, tt.value); err == nil {
			t.Errorf("Set(%s, %s) should fail", tt.key, tt.value)
		}
	}

	if _, err := Get(cfg, "colour"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get unknown err = %v", err)
	}
	if err := Set(cfg, "colour", "blue"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set unknown err = %v", err)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(settings) {
		t.Fatalf("got %d keys", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}
