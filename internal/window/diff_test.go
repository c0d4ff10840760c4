package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	prev := []WindowInfo{
		{ID: 1, Class: "term", Title: "shell"},
		{ID: 2, Class: "term", Title: "logs"},
		{ID: 3, Class: "firefox", Title: "Inbox"},
	}
	curr := []WindowInfo{
		{ID: 4, Class: "code", Title: "main.go"},
		{ID: 3, Class: "firefox", Title: "Inbox (1)"},
		{ID: 1, Class: "term", Title: "shell"},
		{ID: 5, Class: "term", Title: "htop"},
	}

	changes := Diff(prev, curr)

	var got []string
	for _, c := range changes {
		got = append(got, string(c.Type)+" "+c.Window.ID.String())
	}
	assert.Equal(t, []string{
		"closed 0x2",
		"opened 0x4",
		"opened 0x5",
		"title_changed 0x3",
	}, got)
}

func TestDiff_NoChanges(t *testing.T) {
	windows := []WindowInfo{{ID: 1, Class: "term", Title: "shell"}}
	assert.Empty(t, Diff(windows, windows))
	assert.Empty(t, Diff(nil, nil))
}

func TestDiff_FromEmpty(t *testing.T) {
	curr := []WindowInfo{{ID: 1}, {ID: 2}}
	changes := Diff(nil, curr)
	assert.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, ChangeOpened, c.Type)
	}
}

func TestDispatch(t *testing.T) {
	h := &recordingHandler{}
	Dispatch([]Change{
		{Type: ChangeClosed, Window: WindowInfo{ID: 2}},
		{Type: ChangeOpened, Window: WindowInfo{ID: 4, Class: "code"}},
		{Type: ChangeTitleChanged, Window: WindowInfo{ID: 3}},
	}, h)

	assert.Equal(t, []string{"close 0x2", "open 0x4", "title 0x3"}, h.snapshot())
	assert.Equal(t, "code", h.opened[0].Class)
}
