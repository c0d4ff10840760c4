package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/feed"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a hand-driven feed
type stubSource struct {
	mu        sync.Mutex
	snapshot  []byte
	stats     feed.Stats
	listeners []chan []byte
}

func (s *stubSource) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *stubSource) Stats() feed.Stats { return s.stats }

func (s *stubSource) Subscribe() chan []byte {
	ch := make(chan []byte, 10)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

func (s *stubSource) Unsubscribe(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *stubSource) publish(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = []byte(data)
	for _, l := range s.listeners {
		l <- []byte(data)
	}
}

func (s *stubSource) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

const oneGroup = `[{"title":"shell","class":"term","tasks":[{"title":"shell","id":"0x1"}]}]`

func TestGetGroups(t *testing.T) {
	src := &stubSource{snapshot: []byte(oneGroup)}
	srv := httptest.NewServer(NewServer(src, "hyprland").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/groups")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, oneGroup, string(body))
}

func TestGetStats(t *testing.T) {
	src := &stubSource{snapshot: []byte("[]"), stats: feed.Stats{Events: 3, Emitted: 2, SinkFailures: 1}}
	srv := httptest.NewServer(NewServer(src, "x11").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats feed.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, src.stats, stats)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubSource{}, "kwin").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "backend": "kwin"}, body)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewServer(&stubSource{}, "x11").Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/groups", "application/json", strings.NewReader("[]"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGroupStream(t *testing.T) {
	src := &stubSource{snapshot: []byte("[]")}
	srv := httptest.NewServer(NewServer(src, "hyprland").Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/groups/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(msg))

	require.Eventually(t, func() bool { return src.subscribers() == 1 }, time.Second, 10*time.Millisecond)
	src.publish(oneGroup)

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, oneGroup, string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return src.subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
