// Package feed keeps the live task-group registry for one window backend.
//
// A Feed owns the single tasks.Registry and guards it with a mutex. Each
// backend event locks, mutates, serializes and writes the new state to the
// sink before unlocking, so the sink sees states in mutation order.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/output"
	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
	"github.com/bryanchriswhite/TaskGroups/internal/window"
	"github.com/rs/zerolog"
)

// DefaultQueryTimeout bounds the title re-query made on a rename event.
const DefaultQueryTimeout = 2 * time.Second

// Stats counts what the feed has seen. Failures never stop the feed.
type Stats struct {
	Events           int `json:"events"`
	Emitted          int `json:"emitted"`
	SourceFailures   int `json:"source_failures"`
	EncodingFailures int `json:"encoding_failures"`
	SinkFailures     int `json:"sink_failures"`
}

// Feed implements window.Handler over a guarded registry.
type Feed struct {
	backend      window.Backend
	sink         output.Sink
	log          *zerolog.Logger
	queryTimeout time.Duration

	mu        sync.Mutex
	ctx       context.Context
	registry  *tasks.Registry
	last      []byte
	stats     Stats
	listeners []chan []byte
}

// New creates a feed reading from backend and writing to sink.
func New(backend window.Backend, sink output.Sink) *Feed {
	return &Feed{
		backend:      backend,
		sink:         sink,
		log:          logger.WithComponent("feed"),
		queryTimeout: DefaultQueryTimeout,
		ctx:          context.Background(),
		registry:     tasks.New(),
	}
}

// Run initializes from the current window list, emits it, and then applies
// backend events until ctx is cancelled. A lost event source is logged,
// counted and returned; the last emitted state stays valid.
func (f *Feed) Run(ctx context.Context) error {
	f.Initialize(ctx)

	err := f.backend.Watch(ctx, f)
	if err == nil || ctx.Err() != nil {
		return nil
	}

	f.mu.Lock()
	f.stats.SourceFailures++
	f.mu.Unlock()
	f.log.Error().Err(err).Str("backend", f.backend.Name()).Msg("Event source lost, keeping last state")
	return err
}

// Initialize loads the currently mapped windows and always emits the
// result, even when empty. An enumeration failure leaves the registry empty
// and is counted once.
func (f *Feed) Initialize(ctx context.Context) {
	windows, err := f.backend.ListWindows(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ctx = ctx
	if err != nil {
		f.stats.SourceFailures++
		f.log.Warn().Err(err).Str("backend", f.backend.Name()).Msg("Failed to list windows, starting empty")
		windows = nil
	}

	for _, w := range windows {
		if !f.registry.AddTitled(w.ID, w.Class, w.Title, w.InitialTitle) {
			f.log.Debug().Stringer("id", w.ID).Msg("Initialize: duplicate window id ignored")
		}
	}

	f.log.Info().
		Int("windows", f.registry.Len()).
		Str("backend", f.backend.Name()).
		Msg("Task groups initialized")
	f.emitLocked()
}

// WindowOpened adds the window to its class group.
func (f *Feed) WindowOpened(info window.WindowInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Events++
	if !f.registry.AddTitled(info.ID, info.Class, info.Title, info.InitialTitle) {
		f.log.Debug().Stringer("id", info.ID).Msg("Window already tracked, ignoring open")
		return
	}
	f.log.Debug().Stringer("id", info.ID).Str("class", info.Class).Msg("Window opened")
	f.emitLocked()
}

// WindowClosed removes the window and prunes its group if it was the last.
func (f *Feed) WindowClosed(id tasks.WindowID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Events++
	if !f.registry.Remove(id) {
		return
	}
	f.log.Debug().Stringer("id", id).Msg("Window closed")
	f.emitLocked()
}

// WindowTitleChanged re-queries the window's title. A window that is gone
// by the time of the query is left alone.
func (f *Feed) WindowTitleChanged(id tasks.WindowID) {
	f.mu.Lock()
	base := f.ctx
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, f.queryTimeout)
	info, err := f.backend.Window(ctx, id)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.Events++
	if err != nil {
		if errors.Is(err, window.ErrWindowNotFound) {
			f.log.Debug().Stringer("id", id).Msg("Renamed window is gone, ignoring")
		} else {
			f.log.Warn().Err(err).Stringer("id", id).Msg("Failed to re-query renamed window")
		}
		return
	}

	var groupTitle *string
	if info.InitialTitle != "" {
		groupTitle = &info.InitialTitle
	}
	if !f.registry.Rename(id, info.Title, groupTitle) {
		return
	}
	f.log.Debug().Stringer("id", id).Str("title", info.Title).Msg("Window renamed")
	f.emitLocked()
}

// emitLocked serializes the registry and hands it to the sink and any
// subscribers. Callers hold f.mu.
func (f *Feed) emitLocked() {
	data, err := f.registry.Encode()
	if err != nil {
		f.stats.EncodingFailures++
		f.log.Error().Err(err).Msg("Failed to encode task groups, emitting empty list")
		data = []byte("[]")
	}
	f.last = data

	if err := f.sink.Write(data); err != nil {
		f.stats.SinkFailures++
		f.log.Warn().Err(err).Str("sink", f.sink.Name()).Msg("Failed to write snapshot")
	}
	f.stats.Emitted++

	for _, listener := range f.listeners {
		select {
		case listener <- data:
		default:
			// Skip if channel is full
		}
	}
}

// Snapshot returns the most recently emitted state.
func (f *Feed) Snapshot() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return f.registry.Serialize()
	}
	return append([]byte(nil), f.last...)
}

// Stats returns a copy of the feed counters.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Subscribe returns a channel receiving every emitted snapshot. Slow
// subscribers miss intermediate states.
func (f *Feed) Subscribe() chan []byte {
	ch := make(chan []byte, 10)
	f.mu.Lock()
	f.listeners = append(f.listeners, ch)
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (f *Feed) Unsubscribe(ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, listener := range f.listeners {
		if listener == ch {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}
