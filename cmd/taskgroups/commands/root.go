package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/TaskGroups/internal/config"
	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "taskgroups",
		Short: "TaskGroups - open windows grouped by application, as a live JSON feed",
		Long: `TaskGroups watches the compositor's windows and keeps them grouped by
application class. Each time a window opens, closes or changes its title the
whole grouping is printed to stdout as one JSON line, ready for a status bar
or launcher to consume.

Supported window systems:
  • Hyprland (IPC sockets)
  • X11 (EWMH)
  • KDE Plasma Wayland (KWin D-Bus)

Logs go to stderr.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE:              runWatch,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/taskgroups/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human-readable colored logs")
	rootCmd.PersistentFlags().String("backend", "", "window system (auto, hyprland, x11, kwin)")
	rootCmd.PersistentFlags().Int("poll-interval-ms", 0, "polling period for backends without window events")
	rootCmd.PersistentFlags().String("listen", "", "serve the local API on this address (e.g. 127.0.0.1:7777)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("poll_interval_ms", rootCmd.PersistentFlags().Lookup("poll-interval-ms"))
	viper.BindPFlag("listen", rootCmd.PersistentFlags().Lookup("listen"))
}

func initConfig() {
	viper.SetEnvPrefix("TASKGROUPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file and layers flag and environment
// overrides on top. Only overrides that were actually given apply.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := []struct {
		key   string
		apply func() error
	}{
		{"log_level", func() error { return configMgr.SetLogLevel(viper.GetString("log_level")) }},
		{"log_pretty", func() error { return configMgr.SetLogPretty(viper.GetBool("log_pretty")) }},
		{"backend", func() error { return configMgr.SetBackend(viper.GetString("backend")) }},
		{"poll_interval_ms", func() error { return configMgr.SetPollIntervalMs(viper.GetInt("poll_interval_ms")) }},
		{"listen", func() error { return configMgr.SetListen(viper.GetString("listen")) }},
	}
	for _, o := range overrides {
		if !viper.IsSet(o.key) {
			continue
		}
		if err := o.apply(); err != nil {
			return nil, fmt.Errorf("invalid override for %s: %w", o.key, err)
		}
	}

	return configMgr, nil
}

// setupLogging configures the global logger before any command runs
func setupLogging(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return nil
}
