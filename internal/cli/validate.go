package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/luckeyseven/dashload/internal/performance/config"
	"github.com/luckeyseven/dashload/internal/performance/engine"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			if configFile == "" {
				return fmt.Errorf("--config is required")
			}

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			config.ApplyDefaults(cfg)

			noColor, _ := cmd.Flags().GetBool("no-color")
			ok := color.New(color.FgGreen, color.Bold)
			if noColor {
				ok.DisableColor()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %d scenario(s)\n", ok.Sprint("✓"), configFile, len(cfg.Scenarios))
			for _, name := range sortedScenarioNames(cfg) {
				sc := cfg.Scenarios[name]
				pc, err := engine.PatternConfig(name, cfg.Settings, &sc.User)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s: %s, team %d, %d requests/task, think %s-%s\n",
					name, sc.Executor, pc.TeamID, pc.BatchSize, pc.ThinkTime.Min, pc.ThinkTime.Max)
			}
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func sortedScenarioNames(cfg *config.TestConfig) []string {
	names := make([]string, 0, len(cfg.Scenarios))
	for name, sc := range cfg.Scenarios {
		if sc != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
