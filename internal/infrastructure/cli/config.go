package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	"github.com/felixgeelhaar/qualify/pkg/ai"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgProvider     string
	cfgModel        string
	cfgBaseURL      string
	cfgTemperature  float64
	cfgTimeoutSec   int
	cfgTemplatesDir string
	cfgHistory      bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change workspace settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings after environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		if err := config.LoadEnv(root); err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Write settings to .qualify/config.yaml",
	Example: `  qualify config set --provider anthropic --model claude-3-5-sonnet-20240620
  qualify config set --history=true --temperature 0.7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Read(root)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = config.Default()
		}

		flags := cmd.Flags()
		if flags.Changed("provider") {
			name := strings.ToLower(strings.TrimSpace(cfgProvider))
			if !slices.Contains(ai.ProviderNames, name) {
				return NewCLIError(fmt.Sprintf("unknown provider %q", cfgProvider),
					"Choose one of: "+strings.Join(ai.ProviderNames, ", "), nil)
			}
			cfg.Provider = name
		}
		if flags.Changed("model") {
			cfg.Model = cfgModel
		}
		if flags.Changed("base-url") {
			cfg.BaseURL = cfgBaseURL
		}
		if flags.Changed("temperature") {
			cfg.Temperature = cfgTemperature
		}
		if flags.Changed("timeout") {
			cfg.TimeoutSec = cfgTimeoutSec
		}
		if flags.Changed("templates-dir") {
			cfg.TemplatesDir = cfgTemplatesDir
		}
		if flags.Changed("history") {
			cfg.History = cfgHistory
		}

		if err := config.Save(root, cfg); err != nil {
			return NewCLIError("failed to save config", "Temperature must be between 0 and 2", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")
		if ai.RequiresCredential(cfg.Provider) {
			fmt.Fprintf(cmd.OutOrStdout(), "Remember to set %s in the environment or in .env\n", ai.CredentialEnv(cfg.Provider))
		}
		return nil
	},
}

func init() {
	configSetCmd.Flags().StringVar(&cfgProvider, "provider", "", "AI provider ("+strings.Join(ai.ProviderNames, ", ")+")")
	configSetCmd.Flags().StringVar(&cfgModel, "model", "", "Model name")
	configSetCmd.Flags().StringVar(&cfgBaseURL, "base-url", "", "Override the provider endpoint")
	configSetCmd.Flags().Float64Var(&cfgTemperature, "temperature", 0, "Default sampling temperature for plans")
	configSetCmd.Flags().IntVar(&cfgTimeoutSec, "timeout", config.DefaultTimeoutSec, "Per-call provider timeout in seconds")
	configSetCmd.Flags().StringVar(&cfgTemplatesDir, "templates-dir", "", "Directory of YAML templates, relative to the workspace")
	configSetCmd.Flags().BoolVar(&cfgHistory, "history", false, "Record completed runs in .qualify/history.jsonl")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	RootCmd.AddCommand(configCmd)
}
