package window

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
	"github.com/godbus/dbus/v5"
)

// KWin D-Bus constants
const (
	kwinService                    = "org.kde.KWin"
	windowsRunnerPath              = "/WindowsRunner"
	krunnerInterface               = "org.kde.krunner1"
	virtualDesktopManagerInterface = "org.kde.KWin.VirtualDesktopManager"

	// DefaultPollInterval is how often polling backends re-list windows.
	DefaultPollInterval = time.Second
)

// busObject is the part of dbus.BusObject the runner query needs.
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// KWinBackend implements the Backend interface using KWin's D-Bus
// WindowsRunner. KWin has no window lifecycle signals on the bus, so Watch
// polls and diffs.
type KWinBackend struct {
	conn         *dbus.Conn
	runner       busObject
	pollInterval time.Duration
}

// NewKWinBackend creates a new KWin D-Bus backend
func NewKWinBackend(pollInterval time.Duration) (*KWinBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to session bus: %v", ErrSourceUnavailable, err)
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &KWinBackend{
		conn:         conn,
		runner:       conn.Object(kwinService, windowsRunnerPath),
		pollInterval: pollInterval,
	}, nil
}

// Connect checks that KWin is present on the session bus
func (b *KWinBackend) Connect(ctx context.Context) error {
	var names []string
	if err := b.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return fmt.Errorf("%w: failed to list D-Bus names: %v", ErrSourceUnavailable, err)
	}

	for _, name := range names {
		if name == kwinService {
			logger.WithComponent("kwin-backend").Info().Msg("Connected to KWin D-Bus service")
			return nil
		}
	}
	return fmt.Errorf("%w: KWin service not found on D-Bus", ErrSourceUnavailable)
}

// Close closes the D-Bus connection
func (b *KWinBackend) Close() error {
	return b.conn.Close()
}

// Name returns the backend name
func (b *KWinBackend) Name() string {
	return "kwin"
}

// ListWindows uses the KRunner WindowsRunner plugin to enumerate windows
func (b *KWinBackend) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	// Match returns a(sssida{sv}); an empty query returns all windows
	var rawMatches [][]interface{}
	if err := b.runner.Call(krunnerInterface+".Match", 0, "").Store(&rawMatches); err != nil {
		return nil, fmt.Errorf("%w: failed to call Match: %v", ErrSourceUnavailable, err)
	}
	return parseRunnerMatches(rawMatches), nil
}

// parseRunnerMatches turns KRunner matches into windows. Fields are
// id, text, iconName, type, relevance, properties.
func parseRunnerMatches(rawMatches [][]interface{}) []WindowInfo {
	windows := make([]WindowInfo, 0, len(rawMatches))
	seen := make(map[tasks.WindowID]bool, len(rawMatches))

	for _, rawMatch := range rawMatches {
		if len(rawMatch) < 6 {
			continue
		}

		rawID, ok := rawMatch[0].(string)
		if !ok || rawID == "" {
			continue
		}
		text, _ := rawMatch[1].(string)
		iconName, _ := rawMatch[2].(string)

		info := WindowInfo{
			ID:    tasks.HashWindowID(rawID),
			Title: text,
			Class: iconName,
		}
		if info.Class == "" {
			info.Class = classFromTitle(text)
		}

		// Skip windows without useful info
		if info.Title == "" && info.Class == "" {
			continue
		}
		// Keep the first of any hashed-id collision
		if seen[info.ID] {
			continue
		}
		seen[info.ID] = true

		windows = append(windows, info)
	}
	return windows
}

// classFromTitle guesses an application name from a title shaped like
// "Page Title - Application Name".
func classFromTitle(title string) string {
	for _, sep := range []string{" — ", " - "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			candidate := strings.TrimSpace(title[idx+len(sep):])
			if len(candidate) > 0 && len(candidate) <= 30 {
				return strings.ToLower(candidate)
			}
		}
	}
	return ""
}

// Window re-lists and looks the window up
func (b *KWinBackend) Window(ctx context.Context, id tasks.WindowID) (WindowInfo, error) {
	windows, err := b.ListWindows(ctx)
	if err != nil {
		return WindowInfo{}, err
	}
	return findWindow(windows, id)
}

// Watch polls the window list and dispatches the differences. A virtual
// desktop switch triggers an immediate re-list.
func (b *KWinBackend) Watch(ctx context.Context, h Handler) error {
	log := logger.WithComponent("kwin-backend")

	resync := make(chan struct{}, 1)
	if err := b.conn.AddMatchSignal(
		dbus.WithMatchInterface(virtualDesktopManagerInterface),
		dbus.WithMatchMember("currentChanged"),
	); err != nil {
		log.Warn().Err(err).Msg("Failed to add match for VirtualDesktopManager.currentChanged signal")
	} else {
		signals := make(chan *dbus.Signal, 10)
		b.conn.Signal(signals)
		defer b.conn.RemoveSignal(signals)
		go forwardSignals(ctx, signals, resync)
	}

	prev, err := b.ListWindows(ctx)
	if err != nil {
		return err
	}
	return pollWindows(ctx, b.pollInterval, prev, b.ListWindows, resync, h)
}

// forwardSignals coalesces bus signals into resync requests
func forwardSignals(ctx context.Context, signals <-chan *dbus.Signal, resync chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig == nil || sig.Name != virtualDesktopManagerInterface+".currentChanged" {
				continue
			}
			select {
			case resync <- struct{}{}:
			default:
				// A resync is already pending
			}
		}
	}
}

// pollWindows re-lists on every tick or resync request and dispatches the
// diff against the previous listing. Listing errors are logged and the
// previous listing is kept.
func pollWindows(
	ctx context.Context,
	interval time.Duration,
	prev []WindowInfo,
	list func(context.Context) ([]WindowInfo, error),
	resync <-chan struct{},
	h Handler,
) error {
	log := logger.WithComponent("poller")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		curr, err := list(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to list windows")
			return
		}
		Dispatch(Diff(prev, curr), h)
		prev = curr
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-resync:
			check()
		case <-ticker.C:
			check()
		}
	}
}
