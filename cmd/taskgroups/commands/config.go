package commands

import (
	"encoding/json"
	"fmt"

	"github.com/bryanchriswhite/TaskGroups/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect TaskGroups configuration",
	Long: `View the effective TaskGroups configuration. The config file is optional
and never written; edit it by hand.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after the file, environment and flags are applied.`,
	Example: `  # Show configuration as YAML (default)
  taskgroups config show

  # Show configuration as JSON
  taskgroups config show --format json

  # See what an environment override does
  TASKGROUPS_BACKEND=x11 taskgroups config show`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path the configuration file is read from, whether or not it exists.`,
	// Works even when the file itself is invalid
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()
	out := cmd.OutOrStdout()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
