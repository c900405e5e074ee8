// Package config handles configuration loading and management for craft.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/craft/internal/llm"
)

// ProjectConfigName is the per-project override file searched from the
// working directory upward.
const ProjectConfigName = ".craft.yaml"

// Config holds all configuration for craft.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Linera  LineraConfig  `mapstructure:"linera"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Logging LoggingConfig `mapstructure:"logging"`
	State   StateConfig   `mapstructure:"state"`
}

// LLMConfig holds model endpoint settings.
type LLMConfig struct {
	// Provider is "openai" for any chat-completions endpoint or "anthropic".
	Provider  string `mapstructure:"provider"`
	ModelURL  string `mapstructure:"model_url"`
	APIToken  string `mapstructure:"api_token"`
	ModelName string `mapstructure:"model_name"`
	MaxTokens int    `mapstructure:"max_tokens"`
	// Bedrock routes the anthropic provider through AWS Bedrock.
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LineraConfig holds Linera SDK and project settings.
type LineraConfig struct {
	SDKVersion  string `mapstructure:"sdk_version"`
	ProjectRoot string `mapstructure:"project_root"`
}

// ToolsConfig holds the tool-call allow-list and policy.
type ToolsConfig struct {
	// Policy is "drop" or "reject".
	Policy string `mapstructure:"policy"`
	// Allowed restricts the registry. Empty allows every built-in tool.
	Allowed []string `mapstructure:"allowed"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File overrides the default <project>/.craft/logs/craft.log.
	File string `mapstructure:"file"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	// DBPath overrides the default <project>/.craft/state.db.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CRAFT_MODEL_URL, CRAFT_API_TOKEN, CRAFT_MODEL_NAME, ANTHROPIC_API_KEY)
// 2. Project config (.craft.yaml in current directory or parent)
// 3. User config (~/.config/craft/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// LoadUser loads only the user config file, without project overrides or
// environment variables. It is the base for edits written back by Save.
func LoadUser() (*Config, error) {
	path := GetUserConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromPath(path)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.LLM.APIToken = expandEnv(cfg.LLM.APIToken)
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("llm.model_url", "CRAFT_MODEL_URL")
	v.BindEnv("llm.api_token", "CRAFT_API_TOKEN")
	v.BindEnv("llm.model_name", "CRAFT_MODEL_NAME")
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes cfg to path, creating the parent directory.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model_url", cfg.LLM.ModelURL)
	v.Set("llm.api_token", cfg.LLM.APIToken)
	v.Set("llm.model_name", cfg.LLM.ModelName)
	v.Set("llm.max_tokens", cfg.LLM.MaxTokens)
	v.Set("llm.bedrock", cfg.LLM.Bedrock)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("linera.sdk_version", cfg.Linera.SDKVersion)
	v.Set("linera.project_root", cfg.Linera.ProjectRoot)
	v.Set("tools.policy", cfg.Tools.Policy)
	v.Set("tools.allowed", cfg.Tools.Allowed)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("state.db_path", cfg.State.DBPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model_url", "")
	v.SetDefault("llm.api_token", "")
	v.SetDefault("llm.model_name", "")
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.bedrock", false)
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("linera.sdk_version", d.Linera.SDKVersion)
	v.SetDefault("linera.project_root", "")
	v.SetDefault("tools.policy", d.Tools.Policy)
	v.SetDefault("tools.allowed", []string{})
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", "")
	v.SetDefault("state.db_path", "")
}

// getUserConfigDir returns the XDG config directory for craft.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "craft")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "craft")
	}
	return filepath.Join(home, ".config", "craft")
}

// findProjectConfig searches for .craft.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  string(llm.ProviderOpenAI),
			MaxTokens: 4096,
		},
		Linera: LineraConfig{
			SDKVersion: "v0.14.1",
		},
		Tools: ToolsConfig{
			Policy: string(llm.ToolPolicyDrop),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ProjectRoot returns the configured project root, or the working
// directory when none is set.
func (c *Config) ProjectRoot() string {
	if root := strings.TrimSpace(c.Linera.ProjectRoot); root != "" {
		return root
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// DBPath returns the run history database path.
func (c *Config) DBPath() string {
	if c.State.DBPath != "" {
		return c.State.DBPath
	}
	return filepath.Join(c.ProjectRoot(), ".craft", "state.db")
}

// LLMSettings converts the llm section into client settings. The API token
// is resolved through GetAPIToken so that environment variables apply.
func (c *Config) LLMSettings(allowedTools []string) (llm.Settings, error) {
	policy, err := llm.ParseToolPolicy(c.Tools.Policy)
	if err != nil {
		return llm.Settings{}, err
	}

	token, _ := GetAPIToken(c)
	return llm.Settings{
		Provider:     llm.Provider(strings.ToLower(c.LLM.Provider)),
		URL:          c.LLM.ModelURL,
		Token:        token,
		Model:        c.LLM.ModelName,
		MaxTokens:    c.LLM.MaxTokens,
		Bedrock:      c.LLM.Bedrock,
		AWSRegion:    c.LLM.AWSRegion,
		AWSProfile:   c.LLM.AWSProfile,
		AllowedTools: allowedTools,
		ToolPolicy:   policy,
	}, nil
}
