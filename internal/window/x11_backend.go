package window

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
)

// X11Backend implements the Backend interface using X11 and EWMH
type X11Backend struct {
	conn *xgb.Conn
	root xproto.Window

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to X server: %v", ErrSourceUnavailable, err)
	}

	setup := xproto.Setup(conn)
	root := setup.DefaultScreen(conn).Root

	return &X11Backend{
		conn:  conn,
		root:  root,
		atoms: make(map[string]xproto.Atom),
	}, nil
}

// Connect establishes connection to X11 (already done in NewX11Backend)
func (b *X11Backend) Connect(ctx context.Context) error {
	return nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// ListWindows returns the taskbar windows from _NET_CLIENT_LIST, in
// mapping order.
func (b *X11Backend) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	log := logger.WithComponent("x11-backend")

	clientListAtom, err := b.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get _NET_CLIENT_LIST atom: %v", ErrSourceUnavailable, err)
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		b.root,
		clientListAtom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get _NET_CLIENT_LIST property: %v", ErrSourceUnavailable, err)
	}

	windows := make([]WindowInfo, 0, len(reply.Value)/4)
	for _, v := range decodeUint32s(reply.Value) {
		win := xproto.Window(v)

		if b.skipTaskbar(win) {
			continue
		}

		info, err := b.getWindowInfo(win)
		if err != nil {
			log.Debug().Uint32("winID", v).Err(err).Msg("ListWindows: failed to get window info")
			continue
		}

		// Skip windows without titles or class (usually not user windows)
		if info.Title == "" && info.Class == "" {
			continue
		}

		windows = append(windows, info)
	}

	log.Debug().Int("count", len(windows)).Msg("ListWindows: using EWMH _NET_CLIENT_LIST")
	return windows, nil
}

// Window returns the current state of a single window
func (b *X11Backend) Window(ctx context.Context, id tasks.WindowID) (WindowInfo, error) {
	if id > tasks.WindowID(^uint32(0)) {
		return WindowInfo{}, ErrWindowNotFound
	}
	win := xproto.Window(id)
	if _, err := xproto.GetWindowAttributes(b.conn, win).Reply(); err != nil {
		return WindowInfo{}, fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}
	return b.getWindowInfo(win)
}

// Watch listens for PropertyNotify events: _NET_CLIENT_LIST on the root for
// opened and closed windows, and the title properties on each client.
func (b *X11Backend) Watch(ctx context.Context, h Handler) error {
	log := logger.WithComponent("x11-backend")

	if err := xproto.ChangeWindowAttributesChecked(
		b.conn,
		b.root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check(); err != nil {
		return fmt.Errorf("%w: failed to set event mask: %v", ErrSourceUnavailable, err)
	}

	clientListAtom, err := b.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return fmt.Errorf("%w: failed to get _NET_CLIENT_LIST atom: %v", ErrSourceUnavailable, err)
	}
	titleAtoms := make(map[xproto.Atom]bool)
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		if atom, err := b.getAtom(name); err == nil {
			titleAtoms[atom] = true
		}
	}

	prev, err := b.ListWindows(ctx)
	if err != nil {
		return err
	}
	for _, w := range prev {
		b.selectTitleEvents(w.ID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, xerr := b.conn.PollForEvent()
		if xerr != nil {
			// Usually BadWindow for a client that vanished mid-request
			log.Debug().Str("error", xerr.Error()).Msg("X11 error event")
			continue
		}
		if ev == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		prop, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok {
			continue
		}

		switch {
		case prop.Window == b.root && prop.Atom == clientListAtom:
			curr, err := b.ListWindows(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("Failed to re-list clients")
				continue
			}
			changes := Diff(prev, curr)
			for _, c := range changes {
				if c.Type == ChangeOpened {
					b.selectTitleEvents(c.Window.ID)
				}
			}
			Dispatch(changes, h)
			prev = curr

		case prop.Window != b.root && titleAtoms[prop.Atom]:
			id := tasks.WindowID(prop.Window)
			for i := range prev {
				if prev[i].ID != id {
					continue
				}
				if info, err := b.getWindowInfo(prop.Window); err == nil {
					prev[i].Title = info.Title
				}
				h.WindowTitleChanged(id)
				break
			}
		}
	}
}

// selectTitleEvents asks for PropertyNotify on a client window
func (b *X11Backend) selectTitleEvents(id tasks.WindowID) {
	xproto.ChangeWindowAttributes(
		b.conn,
		xproto.Window(id),
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	)
}

// skipTaskbar reports whether the window asked to stay off taskbars
func (b *X11Backend) skipTaskbar(win xproto.Window) bool {
	stateAtom, err := b.getAtom("_NET_WM_STATE")
	if err != nil {
		return false
	}
	skipAtom, err := b.getAtom("_NET_WM_STATE_SKIP_TASKBAR")
	if err != nil {
		return false
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		stateAtom,
		xproto.AtomAtom,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return false
	}

	for _, v := range decodeUint32s(reply.Value) {
		if xproto.Atom(v) == skipAtom {
			return true
		}
	}
	return false
}

// getWindowInfo retrieves information about a window
func (b *X11Backend) getWindowInfo(win xproto.Window) (WindowInfo, error) {
	info := WindowInfo{ID: tasks.WindowID(win)}

	// Get window title
	titleAtom, err := b.getAtom("_NET_WM_NAME")
	if err == nil {
		if title, err := b.getProperty(win, titleAtom); err == nil {
			info.Title = title
		}
	}

	// Try alternative title property
	if info.Title == "" {
		titleAtom, err = b.getAtom("WM_NAME")
		if err == nil {
			if title, err := b.getProperty(win, titleAtom); err == nil {
				info.Title = title
			}
		}
	}

	// WM_CLASS format is: instance\0class\0 (two null-terminated strings)
	classAtom, err := b.getAtom("WM_CLASS")
	if err == nil {
		if classRaw, err := b.getProperty(win, classAtom); err == nil {
			info.Class = parseWMClass(classRaw)
		}
	}

	pidAtom, err := b.getAtom("_NET_WM_PID")
	if err == nil {
		pidReply, err := xproto.GetProperty(
			b.conn,
			false,
			win,
			pidAtom,
			xproto.AtomCardinal,
			0,
			1,
		).Reply()
		if err == nil {
			if vals := decodeUint32s(pidReply.Value); len(vals) > 0 {
				info.PID = int(vals[0])
			}
		}
	}

	return info, nil
}

// parseWMClass returns the class part of WM_CLASS, falling back to the
// instance when the class is empty.
func parseWMClass(raw string) string {
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

// decodeUint32s splits a 32-bit format property into little-endian values
func decodeUint32s(value []byte) []uint32 {
	vals := make([]uint32, 0, len(value)/4)
	for i := 0; i+4 <= len(value); i += 4 {
		vals = append(vals, uint32(value[i])|
			uint32(value[i+1])<<8|
			uint32(value[i+2])<<16|
			uint32(value[i+3])<<24)
	}
	return vals
}

// getAtom gets an atom ID by name, caching the result
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	b.atomMu.Lock()
	defer b.atomMu.Unlock()

	if atom, ok := b.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	b.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}
