package window

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Backend names accepted by NewBackend
const (
	BackendAuto     = "auto"
	BackendHyprland = "hyprland"
	BackendX11      = "x11"
	BackendKWin     = "kwin"
)

// BackendNames lists the accepted backend names.
var BackendNames = []string{BackendAuto, BackendHyprland, BackendX11, BackendKWin}

// NewBackend creates the named backend. "auto" picks one from the session
// environment.
func NewBackend(name string, pollInterval time.Duration) (Backend, error) {
	if name == "" || name == BackendAuto {
		detected, err := Detect(os.Getenv)
		if err != nil {
			return nil, err
		}
		name = detected
	}

	switch name {
	case BackendHyprland:
		return NewHyprlandBackend()
	case BackendX11:
		return NewX11Backend()
	case BackendKWin:
		return NewKWinBackend(pollInterval)
	default:
		return nil, fmt.Errorf("unknown backend %q (use one of: %s)", name, strings.Join(BackendNames, ", "))
	}
}

// Detect picks a backend name from environment variables looked up with
// getenv.
func Detect(getenv func(string) string) (string, error) {
	if getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return BackendHyprland, nil
	}

	desktop := strings.ToUpper(getenv("XDG_CURRENT_DESKTOP"))
	wayland := getenv("WAYLAND_DISPLAY") != "" || getenv("XDG_SESSION_TYPE") == "wayland"
	if strings.Contains(desktop, "KDE") && wayland {
		return BackendKWin, nil
	}

	if getenv("DISPLAY") != "" {
		return BackendX11, nil
	}
	return "", ErrNoBackend
}
