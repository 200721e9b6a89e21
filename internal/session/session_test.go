// File: internal/session/session_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/config"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Browser.Timeout = 5 * time.Second
	cfg.Gate.Interval = 10 * time.Millisecond
	cfg.Download.WorkDir = "."
	return cfg
}

func TestNewSessionHasUniqueID(t *testing.T) {
	a := New(testConfig(), zap.NewNop())
	b := New(testConfig(), zap.NewNop())

	assert.NotEmpty(t, a.ID())
	assert.NotEmpty(t, b.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestActionsBeforeConfigureFail(t *testing.T) {
	s := New(testConfig(), zap.NewNop())
	ctx := context.Background()

	require.ErrorIs(t, s.ClickElement(ctx, "#go"), ErrNotConfigured)
	require.ErrorIs(t, s.EnterInput(ctx, "#q", "text"), ErrNotConfigured)
	require.ErrorIs(t, s.FocusLastOpenedWindow(ctx), ErrNotConfigured)
	require.ErrorIs(t, s.CloseActiveWindow(ctx), ErrNotConfigured)

	_, err := s.GetElementText(ctx, "#title")
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.CurrentURL(ctx)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.EnumerateSelect(ctx, "option", "value")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDownloadFileBeforeConfigureReturnsEmpty(t *testing.T) {
	s := New(testConfig(), zap.NewNop())

	assert.Empty(t, s.DownloadFile(context.Background(), "https://example.com/a.zip"))
}

func TestCloseOnUnconfiguredSessionIsNoOp(t *testing.T) {
	s := New(testConfig(), zap.NewNop())

	s.Close()
	s.Close()

	require.ErrorIs(t, s.ClickElement(context.Background(), "#go"), ErrNotConfigured)
}

func TestTimeoutAndUserAgentFallbacks(t *testing.T) {
	var cfg config.Config
	s := New(cfg, zap.NewNop())
	assert.Equal(t, DefaultTimeout, s.timeout())
	assert.Equal(t, DefaultUserAgent, s.userAgent())

	cfg.Browser.Timeout = 12 * time.Second
	cfg.Browser.UserAgent = "custom-agent/1.0"
	s = New(cfg, zap.NewNop())
	assert.Equal(t, 12*time.Second, s.timeout())
	assert.Equal(t, "custom-agent/1.0", s.userAgent())
}

func TestGateIntervalFlowsFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Gate.Interval = 75 * time.Millisecond

	s := New(cfg, zap.NewNop())
	assert.Equal(t, 75*time.Millisecond, s.Gate().Interval())
}

func TestMergeContextCancelsWithSecondary(t *testing.T) {
	secondary, cancelSecondary := context.WithCancel(context.Background())
	merged, cancel := mergeContext(context.Background(), secondary)
	defer cancel()

	select {
	case <-merged.Done():
		t.Fatal("merged context ended early")
	default:
	}

	cancelSecondary()
	select {
	case <-merged.Done():
	case <-time.After(time.Second):
		t.Fatal("merged context did not follow secondary cancellation")
	}
}

func TestMergeContextCancelReleasesWatcher(t *testing.T) {
	merged, cancel := mergeContext(context.Background(), context.Background())
	cancel()

	select {
	case <-merged.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel did not end the merged context")
	}
}
