// File: internal/session/windows_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBrowser stands in for the CDP target surface so window bookkeeping can
// be exercised without a Chrome process.
type fakeBrowser struct {
	pages  []target.ID
	closed []target.ID
}

func (b *fakeBrowser) targets(ctx context.Context) ([]*target.Info, error) {
	infos := make([]*target.Info, 0, len(b.pages))
	for _, id := range b.pages {
		infos = append(infos, &target.Info{TargetID: id, Type: "page"})
	}
	return infos, nil
}

func (b *fakeBrowser) close(ctx context.Context, id target.ID) error {
	b.closed = append(b.closed, id)
	kept := b.pages[:0]
	for _, p := range b.pages {
		if p != id {
			kept = append(kept, p)
		}
	}
	b.pages = kept
	return nil
}

// newWindowTestSession wires a session to the fake browser with w1 open and
// focused.
func newWindowTestSession(b *fakeBrowser) *Session {
	s := New(testConfig(), zap.NewNop())
	s.configured = true
	s.browserCtx = context.Background()
	s.listTargets = b.targets
	s.closeTarget = b.close
	s.attachLocked("w1")
	s.windows = []target.ID{"w1"}
	return s
}

func TestMergeWindowList(t *testing.T) {
	tests := []struct {
		name        string
		tracked     []target.ID
		reported    []target.ID
		wantWindows []target.ID
		wantAdded   []target.ID
		wantDropped []target.ID
	}{
		{
			name:        "new windows append in reported order",
			tracked:     []target.ID{"w1"},
			reported:    []target.ID{"w1", "w2", "w3"},
			wantWindows: []target.ID{"w1", "w2", "w3"},
			wantAdded:   []target.ID{"w2", "w3"},
		},
		{
			name:        "dead windows drop, open order kept",
			tracked:     []target.ID{"w1", "w2", "w3"},
			reported:    []target.ID{"w3", "w1"},
			wantWindows: []target.ID{"w1", "w3"},
			wantDropped: []target.ID{"w2"},
		},
		{
			name:        "everything gone",
			tracked:     []target.ID{"w1", "w2"},
			reported:    nil,
			wantDropped: []target.ID{"w1", "w2"},
		},
		{
			name:        "no change",
			tracked:     []target.ID{"w1", "w2"},
			reported:    []target.ID{"w1", "w2"},
			wantWindows: []target.ID{"w1", "w2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, added, dropped := mergeWindowList(tt.tracked, tt.reported)
			assert.Equal(t, tt.wantWindows, windows)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantDropped, dropped)
		})
	}
}

func TestFocusLastOpenedWindowPicksNewest(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1"}}
	s := newWindowTestSession(b)

	b.pages = []target.ID{"w1", "w2"}
	require.NoError(t, s.FocusLastOpenedWindow(context.Background()))
	assert.Equal(t, target.ID("w2"), s.current)
	assert.Equal(t, []target.ID{"w1", "w2"}, s.windows)

	// A second call without new windows keeps the focus.
	require.NoError(t, s.FocusLastOpenedWindow(context.Background()))
	assert.Equal(t, target.ID("w2"), s.current)
}

func TestCloseActiveWindowFocusesFirstOpened(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1", "w2", "w3"}}
	s := newWindowTestSession(b)

	require.NoError(t, s.FocusLastOpenedWindow(context.Background()))
	require.Equal(t, target.ID("w3"), s.current)

	require.NoError(t, s.CloseActiveWindow(context.Background()))

	assert.Equal(t, []target.ID{"w3"}, b.closed)
	assert.Equal(t, target.ID("w1"), s.current, "focus falls back to the first-opened window")
	assert.Equal(t, []target.ID{"w1", "w2"}, s.windows)
}

func TestCloseActiveWindowSoleWindowIsNoOpWithGateWait(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1"}}
	s := newWindowTestSession(b)

	clock := newFakeClock()
	s.gate = NewGate(time.Second, clock, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- s.CloseActiveWindow(context.Background())
	}()

	// The no-op path must still arm and sit out the gate interval.
	timer := clock.next(t)
	select {
	case <-done:
		t.Fatal("CloseActiveWindow returned before the gate wait elapsed")
	case <-time.After(50 * time.Millisecond):
	}
	timer.fire()

	require.NoError(t, <-done)
	assert.Empty(t, b.closed, "the sole window must not be closed")
	assert.Equal(t, target.ID("w1"), s.current)
	assert.Equal(t, []target.ID{"w1"}, s.windows)
}

func TestExternallyClosedCurrentWindowRefocuses(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1", "w2"}}
	s := newWindowTestSession(b)

	require.NoError(t, s.FocusLastOpenedWindow(context.Background()))
	require.Equal(t, target.ID("w2"), s.current)

	// The focused popup closes itself.
	b.pages = []target.ID{"w1"}

	count, err := s.OpenWindowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, target.ID("w1"), s.current, "focus must fall back to a live window")

	// The session stays usable: requireRunning hands out a live tab context
	// instead of dereferencing the dead one.
	tabCtx, err := s.requireRunning()
	require.NoError(t, err)
	require.NotNil(t, tabCtx)
}

func TestAllWindowsGoneFailsWithoutPanic(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1"}}
	s := newWindowTestSession(b)

	b.pages = nil
	count, err := s.OpenWindowCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.requireRunning()
	require.ErrorIs(t, err, ErrNotConfigured)

	require.Error(t, s.FocusLastOpenedWindow(context.Background()))
}

func TestRefreshIgnoresNonPageTargets(t *testing.T) {
	b := &fakeBrowser{pages: []target.ID{"w1"}}
	s := newWindowTestSession(b)

	s.listTargets = func(ctx context.Context) ([]*target.Info, error) {
		return []*target.Info{
			{TargetID: "w1", Type: "page"},
			{TargetID: "sw1", Type: "service_worker"},
			{TargetID: "if1", Type: "iframe"},
		}, nil
	}

	count, err := s.OpenWindowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []target.ID{"w1"}, s.windows)
}
