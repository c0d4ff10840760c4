package window

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
)

// Hyprland IPC socket names inside the instance directory
const (
	hyprRequestSocket = ".socket.sock"
	hyprEventSocket   = ".socket2.sock"

	hyprRequestTimeout = 2 * time.Second
	// Window titles can be long; lines past this size are dropped.
	hyprMaxEventLine = 1 << 20
)

// HyprlandBackend implements the Backend interface over Hyprland's IPC sockets
type HyprlandBackend struct {
	socketDir string
	dialer    net.Dialer

	mu     sync.Mutex
	events net.Conn
}

// hyprClient is the subset of a `j/clients` entry we read.
type hyprClient struct {
	Address      string `json:"address"`
	Mapped       bool   `json:"mapped"`
	Hidden       bool   `json:"hidden"`
	Class        string `json:"class"`
	Title        string `json:"title"`
	InitialTitle string `json:"initialTitle"`
	PID          int    `json:"pid"`
	Workspace    struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"workspace"`
}

// NewHyprlandBackend locates the running Hyprland instance from the
// environment.
func NewHyprlandBackend() (*HyprlandBackend, error) {
	dir, err := hyprlandSocketDir()
	if err != nil {
		return nil, err
	}
	return NewHyprlandBackendAt(dir), nil
}

// NewHyprlandBackendAt uses the sockets in dir directly.
func NewHyprlandBackendAt(dir string) *HyprlandBackend {
	return &HyprlandBackend{socketDir: dir}
}

// hyprlandSocketDir resolves the instance directory. Hyprland moved its
// sockets from /tmp/hypr to $XDG_RUNTIME_DIR/hypr; both are checked.
func hyprlandSocketDir() (string, error) {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", fmt.Errorf("%w: HYPRLAND_INSTANCE_SIGNATURE is not set", ErrNoBackend)
	}

	var candidates []string
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		candidates = append(candidates, filepath.Join(runtimeDir, "hypr", sig))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), "hypr", sig))

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, hyprRequestSocket)); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: no Hyprland socket found for instance %s", ErrSourceUnavailable, sig)
}

// Name returns the backend name
func (b *HyprlandBackend) Name() string {
	return "hyprland"
}

// Connect checks that the request socket answers.
func (b *HyprlandBackend) Connect(ctx context.Context) error {
	if _, err := b.request(ctx, "j/version"); err != nil {
		return err
	}
	logger.WithComponent("hyprland-backend").Debug().
		Str("socket_dir", b.socketDir).
		Msg("Connected to Hyprland")
	return nil
}

// Close closes the event connection, if one is open
func (b *HyprlandBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		return nil
	}
	err := b.events.Close()
	b.events = nil
	return err
}

// request sends one command on a fresh request connection and reads the
// reply to EOF.
func (b *HyprlandBackend) request(ctx context.Context, cmd string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hyprRequestTimeout)
	defer cancel()

	conn, err := b.dialer.DialContext(ctx, "unix", filepath.Join(b.socketDir, hyprRequestSocket))
	if err != nil {
		return nil, fmt.Errorf("%w: dial hyprland: %v", ErrSourceUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, cmd); err != nil {
		return nil, fmt.Errorf("%w: send %q: %v", ErrSourceUnavailable, cmd, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: read reply to %q: %v", ErrSourceUnavailable, cmd, err)
	}
	return reply, nil
}

// ListWindows returns all mapped clients in Hyprland's order
func (b *HyprlandBackend) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	log := logger.WithComponent("hyprland-backend")

	reply, err := b.request(ctx, "j/clients")
	if err != nil {
		return nil, err
	}

	var clients []hyprClient
	if err := json.Unmarshal(reply, &clients); err != nil {
		return nil, fmt.Errorf("%w: parse clients: %v", ErrSourceUnavailable, err)
	}

	windows := make([]WindowInfo, 0, len(clients))
	for _, c := range clients {
		if !c.Mapped {
			continue
		}
		id, err := tasks.ParseWindowID(c.Address)
		if err != nil {
			log.Debug().Err(err).Str("address", c.Address).Msg("ListWindows: skipping client with bad address")
			continue
		}
		windows = append(windows, WindowInfo{
			ID:           id,
			Class:        c.Class,
			Title:        c.Title,
			InitialTitle: c.InitialTitle,
			PID:          c.PID,
			Workspace:    c.Workspace.Name,
		})
	}

	log.Debug().Int("count", len(windows)).Msg("ListWindows: got clients")
	return windows, nil
}

// Window re-queries the client list for a single window
func (b *HyprlandBackend) Window(ctx context.Context, id tasks.WindowID) (WindowInfo, error) {
	windows, err := b.ListWindows(ctx)
	if err != nil {
		return WindowInfo{}, err
	}
	return findWindow(windows, id)
}

// Watch reads the event socket and dispatches window events until ctx is
// cancelled or Hyprland closes the socket.
func (b *HyprlandBackend) Watch(ctx context.Context, h Handler) error {
	log := logger.WithComponent("hyprland-backend")

	conn, err := b.dialer.DialContext(ctx, "unix", filepath.Join(b.socketDir, hyprEventSocket))
	if err != nil {
		return fmt.Errorf("%w: dial hyprland events: %v", ErrSourceUnavailable, err)
	}

	b.mu.Lock()
	b.events = conn
	b.mu.Unlock()
	defer b.Close()

	// Unblock the scanner when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Debug().Msg("Watching Hyprland events")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), hyprMaxEventLine)
	for scanner.Scan() {
		if err := handleHyprEvent(scanner.Text(), h); err != nil {
			log.Debug().Err(err).Str("line", scanner.Text()).Msg("Skipping malformed event")
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read hyprland events: %v", ErrSourceUnavailable, err)
	}
	return fmt.Errorf("%w: hyprland closed the event socket", ErrSourceUnavailable)
}

var errMalformedEvent = errors.New("malformed event")

// handleHyprEvent decodes one `EVENT>>DATA` line. Events other than window
// open, close and title change are ignored.
func handleHyprEvent(line string, h Handler) error {
	name, data, ok := strings.Cut(line, ">>")
	if !ok {
		return errMalformedEvent
	}

	switch name {
	case "openwindow":
		// ADDRESS,WORKSPACE,CLASS,TITLE; the title may itself contain commas
		parts := strings.SplitN(data, ",", 4)
		if len(parts) < 4 {
			return fmt.Errorf("%w: openwindow wants 4 fields, got %d", errMalformedEvent, len(parts))
		}
		id, err := tasks.ParseWindowID(parts[0])
		if err != nil {
			return err
		}
		h.WindowOpened(WindowInfo{
			ID:           id,
			Workspace:    parts[1],
			Class:        parts[2],
			Title:        parts[3],
			InitialTitle: parts[3],
		})

	case "closewindow":
		id, err := tasks.ParseWindowID(data)
		if err != nil {
			return err
		}
		h.WindowClosed(id)

	case "windowtitle":
		// windowtitlev2 follows every windowtitle, so only v1 is handled
		addr, _, _ := strings.Cut(data, ",")
		id, err := tasks.ParseWindowID(addr)
		if err != nil {
			return err
		}
		h.WindowTitleChanged(id)
	}
	return nil
}
