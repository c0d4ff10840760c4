package window

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
)

// UnavailableBackend stands in for a window system that could not be
// reached. Every query fails with the cause wrapped in ErrSourceUnavailable,
// so the feed starts empty and records the failure instead of exiting.
type UnavailableBackend struct {
	name  string
	cause error
}

// NewUnavailableBackend wraps the error that prevented creating backend name.
func NewUnavailableBackend(name string, cause error) *UnavailableBackend {
	if !errors.Is(cause, ErrSourceUnavailable) {
		cause = fmt.Errorf("%w: %w", ErrSourceUnavailable, cause)
	}
	return &UnavailableBackend{name: name, cause: cause}
}

func (b *UnavailableBackend) Connect(ctx context.Context) error { return b.cause }
func (b *UnavailableBackend) Close() error                      { return nil }
func (b *UnavailableBackend) Name() string                      { return b.name }

func (b *UnavailableBackend) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	return nil, b.cause
}

func (b *UnavailableBackend) Window(ctx context.Context, id tasks.WindowID) (WindowInfo, error) {
	return WindowInfo{}, b.cause
}

func (b *UnavailableBackend) Watch(ctx context.Context, h Handler) error {
	return b.cause
}
