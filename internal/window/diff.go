package window

import (
	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
)

// ChangeType is the kind of window change found between two listings.
type ChangeType string

const (
	ChangeOpened       ChangeType = "opened"
	ChangeClosed       ChangeType = "closed"
	ChangeTitleChanged ChangeType = "title_changed"
)

// Change is a single difference between two window listings.
type Change struct {
	Type   ChangeType
	Window WindowInfo
}

// Diff compares two listings for polling backends. Closed windows come
// first in prev order, then opened and retitled windows in curr order.
func Diff(prev, curr []WindowInfo) []Change {
	prevMap := make(map[tasks.WindowID]WindowInfo, len(prev))
	for _, w := range prev {
		prevMap[w.ID] = w
	}
	currMap := make(map[tasks.WindowID]WindowInfo, len(curr))
	for _, w := range curr {
		currMap[w.ID] = w
	}

	var changes []Change
	for _, w := range prev {
		if _, ok := currMap[w.ID]; !ok {
			changes = append(changes, Change{Type: ChangeClosed, Window: w})
		}
	}

	var retitled []Change
	for _, w := range curr {
		old, ok := prevMap[w.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Type: ChangeOpened, Window: w})
		case old.Title != w.Title:
			retitled = append(retitled, Change{Type: ChangeTitleChanged, Window: w})
		}
	}

	return append(changes, retitled...)
}

// Dispatch replays changes onto h in order.
func Dispatch(changes []Change, h Handler) {
	for _, c := range changes {
		switch c.Type {
		case ChangeOpened:
			h.WindowOpened(c.Window)
		case ChangeClosed:
			h.WindowClosed(c.Window.ID)
		case ChangeTitleChanged:
			h.WindowTitleChanged(c.Window.ID)
		}
	}
}
