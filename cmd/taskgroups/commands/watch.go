package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/api"
	"github.com/bryanchriswhite/TaskGroups/internal/feed"
	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/output"
	"github.com/bryanchriswhite/TaskGroups/internal/window"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the grouped windows on every change (default)",
	Long: `Print the current window groups as one JSON line, then a new line every
time a window opens, closes or is renamed. Runs until interrupted.

A window system that cannot be reached is logged; the feed then holds an
empty list until the process is stopped.`,
	Example: `  # Feed a status bar
  taskgroups

  # Force the X11 backend with debug logs
  taskgroups watch --backend x11 --log-level debug

  # Also serve the local API
  taskgroups watch --listen 127.0.0.1:7777`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("watch")

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := openBackend(ctx, cfg.Backend, time.Duration(cfg.PollIntervalMs)*time.Millisecond)
	defer backend.Close()

	f := feed.New(backend, output.NewLineSink(cmd.OutOrStdout(), "stdout"))

	if cfg.Listen != "" {
		server := api.NewServer(f, backend.Name())
		go func() {
			if err := server.Start(ctx, cfg.Listen); err != nil {
				log.Error().Err(err).Str("addr", cfg.Listen).Msg("API server stopped")
			}
		}()
	}

	log.Info().
		Str("backend", backend.Name()).
		Str("config", configMgr.GetConfigPath()).
		Msg("Watching windows")

	if err := f.Run(ctx); err != nil {
		// The last state stays on stdout; wait for a signal like a healthy run
		<-ctx.Done()
	}

	stats := f.Stats()
	log.Info().
		Int("events", stats.Events).
		Int("emitted", stats.Emitted).
		Int("source_failures", stats.SourceFailures).
		Int("encoding_failures", stats.EncodingFailures).
		Int("sink_failures", stats.SinkFailures).
		Msg("Shutting down")
	return nil
}

// openBackend creates and connects the configured backend. Failures are
// logged and replaced by an UnavailableBackend so the feed still runs.
func openBackend(ctx context.Context, name string, pollInterval time.Duration) window.Backend {
	log := logger.WithComponent("watch")

	backend, err := window.NewBackend(name, pollInterval)
	if err != nil {
		log.Error().Err(err).Str("backend", name).Msg("Window system unavailable")
		return window.NewUnavailableBackend(name, err)
	}

	if err := backend.Connect(ctx); err != nil {
		log.Error().Err(err).Str("backend", backend.Name()).Msg("Failed to connect to window system")
		backend.Close()
		return window.NewUnavailableBackend(backend.Name(), err)
	}
	return backend
}
