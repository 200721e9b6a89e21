// File: internal/session/windows.go
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// chromedpTargets lists the browser's targets; the production value of the
// listTargets seam.
func (s *Session) chromedpTargets(ctx context.Context) ([]*target.Info, error) {
	listCtx, cancel := mergeContext(s.browserCtx, ctx)
	defer cancel()
	return chromedp.Targets(listCtx)
}

// chromedpCloseTarget closes one browser target; the production value of the
// closeTarget seam.
func (s *Session) chromedpCloseTarget(ctx context.Context, id target.ID) error {
	closeCtx, cancel := mergeContext(s.browserCtx, ctx)
	defer cancel()
	return chromedp.Run(closeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(id).Do(ctx)
	}))
}

// mergeWindowList folds the reported page targets into the tracked open-order
// list: targets no longer reported drop out, unseen ones append in the order
// the browser reports them.
func mergeWindowList(tracked, reported []target.ID) (windows, added, dropped []target.ID) {
	known := make(map[target.ID]bool, len(tracked))
	for _, id := range tracked {
		known[id] = true
	}
	alive := make(map[target.ID]bool, len(reported))
	for _, id := range reported {
		alive[id] = true
		if !known[id] {
			added = append(added, id)
		}
	}

	for _, id := range tracked {
		if alive[id] {
			windows = append(windows, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	windows = append(windows, added...)
	return windows, added, dropped
}

// refreshWindowsLocked reconciles the tracked window list with the browser's
// page targets. When the current window died externally (a popup closing
// itself, for instance), focus falls back to the first-opened survivor so
// later actions never run against a dead handle.
func (s *Session) refreshWindowsLocked(ctx context.Context) error {
	infos, err := s.listTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list browser targets: %w", err)
	}

	reported := make([]target.ID, 0, len(infos))
	for _, info := range infos {
		if info.Type == "page" {
			reported = append(reported, info.TargetID)
		}
	}

	windows, added, dropped := mergeWindowList(s.windows, reported)
	s.windows = windows
	for _, id := range added {
		s.tabs[id] = nil // known but not yet attached
	}
	for _, id := range dropped {
		if t := s.tabs[id]; t != nil {
			t.cancel()
		}
		delete(s.tabs, id)
	}

	if _, tracked := s.tabs[s.current]; !tracked {
		if len(s.windows) == 0 {
			s.current = ""
			return nil
		}
		s.logger.Warn("Current window closed externally, refocusing.",
			zap.String("was", string(s.current)), zap.String("now", string(s.windows[0])))
		s.attachLocked(s.windows[0])
	}
	return nil
}

// attachLocked makes id the current window, creating an attached context for
// it on first use.
func (s *Session) attachLocked(id target.ID) {
	if t, ok := s.tabs[id]; !ok || t == nil {
		tabCtx, tabCancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
		s.tabs[id] = &tab{ctx: tabCtx, cancel: tabCancel}
	}
	s.current = id
}

// FocusLastOpenedWindow switches the session to the most recently opened
// window, typically after a click spawned a new one. With a single window it
// is a harmless no-op.
func (s *Session) FocusLastOpenedWindow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return ErrNotConfigured
	}
	if err := s.refreshWindowsLocked(ctx); err != nil {
		return err
	}
	if len(s.windows) == 0 {
		return fmt.Errorf("no open windows to focus")
	}

	last := s.windows[len(s.windows)-1]
	s.attachLocked(last)

	s.logger.Info("Focused last opened window.",
		zap.String("window", string(last)), zap.Int("open_windows", len(s.windows)))
	return nil
}

// CloseActiveWindow closes the focused window and switches focus to the
// first-opened remaining window. Closing the only window is a no-op so the
// session always keeps a usable page. A gate wait follows either way.
func (s *Session) CloseActiveWindow(ctx context.Context) error {
	s.mu.Lock()

	if !s.configured {
		s.mu.Unlock()
		return ErrNotConfigured
	}
	if err := s.refreshWindowsLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}

	if len(s.windows) <= 1 {
		s.logger.Debug("Close of sole window skipped.")
		s.mu.Unlock()
		return s.gate.WaitSome(ctx)
	}

	closing := s.current
	if err := s.closeTarget(ctx, closing); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to close window %q: %w", closing, err)
	}

	if t := s.tabs[closing]; t != nil {
		t.cancel()
	}
	delete(s.tabs, closing)
	kept := s.windows[:0]
	for _, id := range s.windows {
		if id != closing {
			kept = append(kept, id)
		}
	}
	s.windows = kept
	s.attachLocked(s.windows[0])

	s.logger.Info("Closed active window.",
		zap.String("closed", string(closing)), zap.String("focused", string(s.current)))

	s.mu.Unlock()
	return s.gate.WaitSome(ctx)
}

// OpenWindowCount reports how many page windows the session is tracking.
func (s *Session) OpenWindowCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.configured {
		return 0, ErrNotConfigured
	}
	if err := s.refreshWindowsLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.windows), nil
}
