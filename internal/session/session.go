// File: internal/session/session.go

// Package session owns the single browser automation session: its
// configuration and lifecycle, the paced interaction surface (click, type,
// wait), window management, and the download path that bridges the browser's
// cookies into a standalone HTTP downloader.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/config"
	"github.com/xkilldash9x/pagedriver/internal/proxy"
)

const (
	// DefaultTimeout bounds navigation and await-selector waits when the
	// configuration does not specify one.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is the fixed user agent presented by the session
	// unless overridden in configuration.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Fixed viewport the browser is launched with.
	windowWidth  = 1280
	windowHeight = 1024
)

// tab is one attached browser window/target.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Session is one browser automation instance. At most one window is current
// at any time; actions other than configuration fail until the session is
// running, and navigation configures lazily. The design contract forbids a
// second concurrently-live Session per process.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig
	dlCfg  config.DownloadConfig
	gate   *Gate

	// Driver seams for the window bookkeeping; production values speak CDP,
	// tests substitute fakes.
	listTargets func(ctx context.Context) ([]*target.Info, error)
	closeTarget func(ctx context.Context, id target.ID) error

	mu          sync.Mutex
	configured  bool
	allocCancel context.CancelFunc
	browserCtx  context.Context
	// windows holds open window handles in open order; current is the
	// focused one.
	windows []target.ID
	current target.ID
	tabs    map[target.ID]*tab
	relay   *proxy.Relay

	closeOnce sync.Once
}

// New creates an unconfigured session. The browser process is not launched
// until Configure (or the first navigation).
func New(cfg config.Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := uuid.NewString()

	s := &Session{
		id:     sessionID,
		logger: logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:    cfg.Browser,
		dlCfg:  cfg.Download,
		gate:   NewGate(cfg.Gate.Interval, nil, logger.Named("gate")),
		tabs:   make(map[target.ID]*tab),
	}
	s.listTargets = s.chromedpTargets
	s.closeTarget = s.chromedpCloseTarget
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Gate exposes the interaction gate, mainly for callers that pace their own
// extra steps.
func (s *Session) Gate() *Gate {
	return s.gate
}

// timeout resolves the configured await/navigation timeout.
func (s *Session) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return DefaultTimeout
}

// userAgent resolves the configured user agent string.
func (s *Session) userAgent() string {
	if s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	return DefaultUserAgent
}

// Configure launches the browser process. It is idempotent: the second and
// later calls are no-ops, so lazy auto-configuration on first navigation can
// coexist with an explicit call without leaking a second browser.
func (s *Session) Configure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configureLocked(ctx)
}

func (s *Session) configureLocked(ctx context.Context) error {
	if s.configured {
		return nil
	}

	s.logger.Info("Configuring browser session.",
		zap.Duration("timeout", s.timeout()),
		zap.Bool("headless", s.cfg.Headless),
		zap.String("proxy_url", s.cfg.ProxyURL))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		// The scraping targets this tool drives frequently sit behind
		// self-signed staging certs and hostile CORS setups.
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.UserAgent(s.userAgent()),
		chromedp.WindowSize(windowWidth, windowHeight),
	)
	if s.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if s.cfg.ProxyURL != "" {
		relay, err := proxy.NewRelay(s.cfg.ProxyURL, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create proxy relay: %w", err)
		}
		if err := relay.Start(); err != nil {
			return fmt.Errorf("failed to start proxy relay: %w", err)
		}
		s.relay = relay
		opts = append(opts, chromedp.ProxyServer("http://"+relay.Addr()))
	}

	// The allocator is rooted in the background context: the session's
	// lifetime is governed by Close, not by whichever call context happened
	// to trigger configuration.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf))

	// Launch the process now so configuration failures surface here rather
	// than on the first interaction.
	launchCtx, launchCancel := context.WithTimeout(ctx, s.timeout())
	defer launchCancel()
	runCtx, runCancel := mergeContext(browserCtx, launchCtx)
	defer runCancel()
	if err := chromedp.Run(runCtx); err != nil {
		browserCancel()
		allocCancel()
		s.stopRelayLocked()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	initial := chromedp.FromContext(browserCtx).Target.TargetID

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.tabs[initial] = &tab{ctx: browserCtx, cancel: browserCancel}
	s.windows = []target.ID{initial}
	s.current = initial
	s.configured = true

	s.logger.Info("Browser session running.", zap.String("initial_window", string(initial)))
	return nil
}

// ensureConfigured configures lazily for operations that support it.
func (s *Session) ensureConfigured(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configureLocked(ctx)
}

// requireRunning returns the current tab context, failing with
// ErrNotConfigured when the session is not running or every window is gone.
func (s *Session) requireRunning() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return nil, ErrNotConfigured
	}
	t, ok := s.tabs[s.current]
	if !ok || t == nil {
		return nil, fmt.Errorf("no usable window: %w", ErrNotConfigured)
	}
	return t.ctx, nil
}

// run executes chromedp actions against the current window, honoring both
// the caller's context and the given timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tabCtx, err := s.requireRunning()
	if err != nil {
		return err
	}

	opCtx, opCancel := mergeContext(tabCtx, ctx)
	defer opCancel()
	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// Close disposes the session: the gate can no longer block new work, the
// proxy relay stops, and cancelling the allocator terminates the browser
// process and releases its OS resources. Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.configured {
			s.logger.Debug("Close called on unconfigured session.")
			return
		}
		s.logger.Info("Closing browser session.")

		// Cancel attached tab contexts before the allocator so no late
		// callback touches a disposed handle.
		for _, t := range s.tabs {
			if t != nil {
				t.cancel()
			}
		}
		s.tabs = make(map[target.ID]*tab)
		s.windows = nil

		if s.allocCancel != nil {
			s.allocCancel()
			s.allocCancel = nil
		}
		s.browserCtx = nil
		s.stopRelayLocked()
		s.configured = false
	})
}

func (s *Session) stopRelayLocked() {
	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			s.logger.Warn("Failed to stop proxy relay.", zap.Error(err))
		}
		s.relay = nil
	}
}

// mergeContext derives a context from primary that is additionally canceled
// when secondary ends. Values and the cdp executor travel with primary.
// Callers must invoke the returned cancel to release the watcher goroutine.
func mergeContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}
