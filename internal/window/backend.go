package window

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
)

var (
	// ErrWindowNotFound is returned by Backend.Window when the window is gone.
	ErrWindowNotFound = errors.New("window not found")

	// ErrSourceUnavailable wraps failures to reach or read the window system.
	ErrSourceUnavailable = errors.New("window source unavailable")

	// ErrNoBackend is returned when no supported window system is detected.
	ErrNoBackend = errors.New("no supported window system detected")
)

// WindowInfo represents information about a window
type WindowInfo struct {
	ID           tasks.WindowID `json:"id" yaml:"id"`
	Class        string         `json:"class" yaml:"class"`
	Title        string         `json:"title" yaml:"title"`
	InitialTitle string         `json:"initial_title,omitempty" yaml:"initial_title,omitempty"`
	PID          int            `json:"pid,omitempty" yaml:"pid,omitempty"`
	Workspace    string         `json:"workspace,omitempty" yaml:"workspace,omitempty"`
}

// Handler receives window lifecycle events from a Backend. Calls may come
// from any goroutine.
type Handler interface {
	WindowOpened(info WindowInfo)
	WindowClosed(id tasks.WindowID)
	// WindowTitleChanged carries no title; the receiver re-queries it.
	WindowTitleChanged(id tasks.WindowID)
}

// Backend defines the interface for window-system event sources (Hyprland, X11, KWin)
type Backend interface {
	// Connect establishes connection to the display server
	Connect(ctx context.Context) error

	// Close closes the connection to the display server
	Close() error

	// ListWindows returns all mapped application windows
	ListWindows(ctx context.Context) ([]WindowInfo, error)

	// Window returns the current state of one window, or ErrWindowNotFound
	Window(ctx context.Context, id tasks.WindowID) (WindowInfo, error)

	// Watch delivers window events to h until ctx is cancelled or the
	// event source is lost. It blocks.
	Watch(ctx context.Context, h Handler) error

	// Name returns the backend name (e.g., "hyprland", "x11", "kwin")
	Name() string
}

// findWindow looks id up in a listing.
func findWindow(windows []WindowInfo, id tasks.WindowID) (WindowInfo, error) {
	for _, w := range windows {
		if w.ID == id {
			return w, nil
		}
	}
	return WindowInfo{}, ErrWindowNotFound
}
