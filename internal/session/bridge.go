// File: internal/session/bridge.go

// Bridging from the live browser to the standalone downloader: the browser's
// cookies and current address are snapshotted per download so the HTTP client
// presents the same identity the page was browsed with.
package session

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/download"
)

// snapshotCookies exports every cookie the browser currently holds, across
// all domains, preserving the driver's reporting order.
func (s *Session) snapshotCookies(ctx context.Context) (download.CookieSnapshot, error) {
	var raw []*network.Cookie
	err := s.run(ctx, s.timeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	snapshot := make(download.CookieSnapshot, 0, len(raw))
	for _, c := range raw {
		snapshot = append(snapshot, download.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
		})
	}
	return snapshot, nil
}

// newDownloader builds a download client seeded from the session: browser
// cookies imported, the current page as the initial referrer, and the same
// user agent and upstream proxy the browser uses. The relay is for the
// browser only; the client speaks to the upstream proxy directly.
func (s *Session) newDownloader(ctx context.Context) (*download.Client, error) {
	snapshot, err := s.snapshotCookies(ctx)
	if err != nil {
		return nil, err
	}
	currentURL, err := s.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	client, err := download.NewClient(download.ClientConfig{
		ProxyURL:  s.cfg.ProxyURL,
		UserAgent: s.userAgent(),
		// Mirrors the browser's certificate handling so a download does not
		// fail on a cert the page itself accepted.
		InsecureSkipVerify: true,
		Timeout:            s.timeout(),
		MinRequestSpacing:  s.dlCfg.MinRequestSpacing,
		Logger:             s.logger.Named("download"),
	})
	if err != nil {
		return nil, err
	}

	client.ImportCookies(snapshot)
	client.SetReferrer(currentURL)
	return client, nil
}

// DownloadFile fetches rawURL with the session's bridged HTTP client and
// stores it in the configured work directory. Returns the absolute path of
// the stored file, or "" on any failure; errors are logged, never returned,
// so scraping loops degrade to skipped files rather than aborting.
func (s *Session) DownloadFile(ctx context.Context, rawURL string) string {
	s.logger.Info("Downloading file.", zap.String("url", rawURL))

	client, err := s.newDownloader(ctx)
	if err != nil {
		s.logger.Error("Failed to prepare downloader.", zap.String("url", rawURL), zap.Error(err))
		return ""
	}
	defer client.Close()

	result, err := client.Download(ctx, rawURL, s.dlCfg.WorkDir)
	if err != nil {
		s.logger.Error("Download failed.", zap.String("url", rawURL), zap.Error(err))
		return ""
	}

	s.logger.Info("Download complete.",
		zap.String("url", rawURL), zap.String("path", result.Path))
	return result.Path
}
