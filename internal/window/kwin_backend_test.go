package window

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runnerMatch(id, text, icon string) []interface{} {
	return []interface{}{id, text, icon, int32(0), float64(1), map[string]dbus.Variant{}}
}

func TestParseRunnerMatches(t *testing.T) {
	windows := parseRunnerMatches([][]interface{}{
		runnerMatch("0_{dc80ff04-3245-4d9b-b9a8-1582640d39e1}", "Inbox — Mozilla Firefox", "firefox"),
		runnerMatch("0_{aaaaaaaa-3245-4d9b-b9a8-1582640d39e1}", "notes.txt - Kate", ""),
		runnerMatch("0_{bbbbbbbb-3245-4d9b-b9a8-1582640d39e1}", "", ""),
		{"short"},
		runnerMatch("", "no id", "x"),
		runnerMatch("0_{dc80ff04-3245-4d9b-b9a8-1582640d39e1}", "duplicate", "firefox"),
	})

	require.Len(t, windows, 2)
	assert.Equal(t, tasks.HashWindowID("0_{dc80ff04-3245-4d9b-b9a8-1582640d39e1}"), windows[0].ID)
	assert.Equal(t, "firefox", windows[0].Class)
	assert.Equal(t, "Inbox — Mozilla Firefox", windows[0].Title)
	assert.Equal(t, "kate", windows[1].Class)
}

func TestClassFromTitle(t *testing.T) {
	assert.Equal(t, "mozilla firefox", classFromTitle("Inbox — Mozilla Firefox"))
	assert.Equal(t, "kate", classFromTitle("a - b - Kate"))
	assert.Equal(t, "", classFromTitle("Untitled"))
	assert.Equal(t, "", classFromTitle("x - this suffix is far too long to be an application name"))
}

// scriptedLister returns canned listings in order, repeating the last one.
type scriptedLister struct {
	mu       sync.Mutex
	listings [][]WindowInfo
	errs     []error
	calls    int
}

func (s *scriptedLister) list(ctx context.Context) ([]WindowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.listings) {
		i = len(s.listings) - 1
	}
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.listings[i], nil
}

func TestPollWindows(t *testing.T) {
	lister := &scriptedLister{
		listings: [][]WindowInfo{
			nil, // error slot
			{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}},
			{{ID: 2, Title: "b2"}},
		},
		errs: []error{errors.New("bus hiccup")},
	}
	prev := []WindowInfo{{ID: 1, Title: "a"}}
	h := &recordingHandler{}
	resync := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pollWindows(ctx, time.Hour, prev, lister.list, resync, h) }()

	for i := 0; i < 3; i++ {
		resync <- struct{}{}
	}

	want := []string{"open 0x2", "close 0x1", "title 0x2"}
	require.Eventually(t, func() bool {
		return len(h.snapshot()) == len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, h.snapshot())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pollWindows did not stop")
	}
}
