package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFunc(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr error
	}{
		{
			name: "hyprland wins",
			env:  map[string]string{"HYPRLAND_INSTANCE_SIGNATURE": "abc", "DISPLAY": ":0"},
			want: BackendHyprland,
		},
		{
			name: "plasma wayland",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "KDE", "WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":1"},
			want: BackendKWin,
		},
		{
			name: "plasma x11 uses x11",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "KDE", "XDG_SESSION_TYPE": "x11", "DISPLAY": ":0"},
			want: BackendX11,
		},
		{
			name: "plain x11",
			env:  map[string]string{"DISPLAY": ":0"},
			want: BackendX11,
		},
		{
			name:    "nothing",
			env:     map[string]string{},
			wantErr: ErrNoBackend,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(envFunc(tt.env))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend("wayfire", time.Second)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestUnavailableBackend(t *testing.T) {
	b := NewUnavailableBackend("auto", ErrNoBackend)

	assert.Equal(t, "auto", b.Name())
	assert.ErrorIs(t, b.Connect(context.Background()), ErrSourceUnavailable)
	assert.ErrorIs(t, b.Connect(context.Background()), ErrNoBackend)

	_, err := b.ListWindows(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	_, err = b.Window(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, b.Watch(context.Background(), &recordingHandler{}), ErrSourceUnavailable)
	assert.NoError(t, b.Close())
}
