package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrNoAPIToken is returned when no API token is configured.
var ErrNoAPIToken = errors.New("no LLM API token configured")

// ErrUnknownKey is returned by Get and Set for an unrecognized setting.
var ErrUnknownKey = errors.New("unknown setting")

// GetAPIToken returns the LLM API token.
// It checks in order: CRAFT_API_TOKEN, ANTHROPIC_API_KEY (anthropic
// provider only), config file.
func GetAPIToken(cfg *Config) (string, error) {
	token, _ := resolveToken(cfg)
	if token == "" {
		return "", ErrNoAPIToken
	}
	return token, nil
}

// TokenSource represents where an API token was loaded from.
type TokenSource string

const (
	TokenSourceEnv    TokenSource = "environment"
	TokenSourceConfig TokenSource = "config_file"
	TokenSourceNone   TokenSource = "none"
)

// GetAPITokenSource returns where the API token was sourced from.
func GetAPITokenSource(cfg *Config) TokenSource {
	_, src := resolveToken(cfg)
	return src
}

func resolveToken(cfg *Config) (string, TokenSource) {
	if token := os.Getenv("CRAFT_API_TOKEN"); token != "" {
		return token, TokenSourceEnv
	}
	if cfg != nil && strings.EqualFold(cfg.LLM.Provider, "anthropic") {
		if token := os.Getenv("ANTHROPIC_API_KEY"); token != "" {
			return token, TokenSourceEnv
		}
	}
	if cfg != nil && cfg.LLM.APIToken != "" {
		token := os.ExpandEnv(cfg.LLM.APIToken)
		if token != "" && !strings.HasPrefix(token, "${") {
			return token, TokenSourceConfig
		}
	}
	return "", TokenSourceNone
}

// MaskAPIToken returns a masked version of the token for display.
// Shows the first 4 and last 4 characters.
func MaskAPIToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// setting binds a key to a Config field.
type setting struct {
	get func(*Config) string
	set func(*Config, string) error
}

// settings maps dotted keys to fields. aliases maps the short camelCase
// names to their dotted keys.
var (
	settings = map[string]setting{
		"llm.provider":    stringSetting(func(c *Config) *string { return &c.LLM.Provider }),
		"llm.model_url":   stringSetting(func(c *Config) *string { return &c.LLM.ModelURL }),
		"llm.api_token":   stringSetting(func(c *Config) *string { return &c.LLM.APIToken }),
		"llm.model_name":  stringSetting(func(c *Config) *string { return &c.LLM.ModelName }),
		"llm.aws_region":  stringSetting(func(c *Config) *string { return &c.LLM.AWSRegion }),
		"llm.aws_profile": stringSetting(func(c *Config) *string { return &c.LLM.AWSProfile }),
		"llm.max_tokens": {
			get: func(c *Config) string { return strconv.Itoa(c.LLM.MaxTokens) },
			set: func(c *Config, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil || n <= 0 {
					return fmt.Errorf("max_tokens must be a positive integer, got %q", v)
				}
				c.LLM.MaxTokens = n
				return nil
			},
		},
		"llm.bedrock": {
			get: func(c *Config) string { return strconv.FormatBool(c.LLM.Bedrock) },
			set: func(c *Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("bedrock must be true or false, got %q", v)
				}
				c.LLM.Bedrock = b
				return nil
			},
		},
		"linera.sdk_version":  stringSetting(func(c *Config) *string { return &c.Linera.SDKVersion }),
		"linera.project_root": stringSetting(func(c *Config) *string { return &c.Linera.ProjectRoot }),
		"tools.policy": {
			get: func(c *Config) string { return c.Tools.Policy },
			set: func(c *Config, v string) error {
				v = strings.ToLower(strings.TrimSpace(v))
				if v != "drop" && v != "reject" {
					return fmt.Errorf("policy must be drop or reject, got %q", v)
				}
				c.Tools.Policy = v
				return nil
			},
		},
		"tools.allowed": {
			get: func(c *Config) string { return strings.Join(c.Tools.Allowed, ",") },
			set: func(c *Config, v string) error {
				c.Tools.Allowed = nil
				for _, name := range strings.Split(v, ",") {
					if name = strings.TrimSpace(name); name != "" {
						c.Tools.Allowed = append(c.Tools.Allowed, name)
					}
				}
				return nil
			},
		},
		"logging.level": stringSetting(func(c *Config) *string { return &c.Logging.Level }),
		"logging.file":  stringSetting(func(c *Config) *string { return &c.Logging.File }),
		"state.db_path": stringSetting(func(c *Config) *string { return &c.State.DBPath }),
	}

	aliases = map[string]string{
		"modelUrl":    "llm.model_url",
		"apiToken":    "llm.api_token",
		"modelName":   "llm.model_name",
		"sdkVersion":  "linera.sdk_version",
		"projectRoot": "linera.project_root",
	}
)

func stringSetting(field func(*Config) *string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func lookup(key string) (string, setting, error) {
	if dotted, ok := aliases[key]; ok {
		key = dotted
	}
	s, ok := settings[key]
	if !ok {
		return "", setting{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return key, s, nil
}

// Get returns a setting by dotted key (llm.model_url) or short name (modelUrl).
func Get(cfg *Config, key string) (string, error) {
	_, s, err := lookup(key)
	if err != nil {
		return "", err
	}
	return s.get(cfg), nil
}

// Set updates a setting by dotted key or short name.
func Set(cfg *Config, key, value string) error {
	dotted, s, err := lookup(key)
	if err != nil {
		return err
	}
	if err := s.set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", dotted, err)
	}
	return nil
}

// Keys returns every dotted setting key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
