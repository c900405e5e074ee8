package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/craft/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify craft configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Keys are dotted (llm.model_url) or the short names modelUrl, apiToken,
modelName, sdkVersion and projectRoot.

Configuration is stored at ~/.config/craft/config.yaml
Project-specific overrides can be placed in .craft.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 2 {
			setConfigKey(args[0], args[1])
			return
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if len(args) == 1 {
			displayConfigKey(cfg, args[0])
			return
		}
		displayAllConfig(cfg)
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range config.Keys() {
		value, _ := configValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}

	fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := configValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// configValue returns a value for display. The API token is masked and
// annotated with where it came from.
func configValue(cfg *config.Config, key string) (string, error) {
	value, err := config.Get(cfg, key)
	if err != nil {
		return "", err
	}
	if key == "apiToken" || strings.EqualFold(key, "llm.api_token") {
		token, _ := config.GetAPIToken(cfg)
		return fmt.Sprintf("%s (%s)", config.MaskAPIToken(token), config.GetAPITokenSource(cfg)), nil
	}
	return value, nil
}

// setConfigKey sets a value in the user config file. Project overrides and
// environment variables are not written back.
func setConfigKey(key, value string) {
	cfg, err := config.LoadUser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Set(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	if key == "apiToken" || strings.EqualFold(key, "llm.api_token") {
		value = config.MaskAPIToken(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}
