// File: internal/download/client.go

// Package download implements the lightweight HTTP downloader that inherits a
// browser session's cookies and referrer, so file downloads authenticate the
// same way the browser would without dragging the browser engine into the
// transfer path.
package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Transport defaults, sized for sequential file transfers rather than
// browser-style parallel resource loading.
const (
	DefaultRequestTimeout      = 10 * time.Minute
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConns        = 10
)

// Cookie is one browser cookie at the moment of export.
type Cookie struct {
	Name   string
	Value  string
	Path   string
	Domain string
}

// CookieSnapshot is an ordered, one-time copy of the browser's cookies.
// Later cookie changes in the browser do not affect a snapshot already taken.
type CookieSnapshot []Cookie

// Result describes a completed download.
type Result struct {
	// Path is the absolute path of the saved file.
	Path string
	// Name is the file name derived from Content-Disposition; empty when the
	// header was absent or unparsable (the file then keeps its temp name).
	Name string
}

// ClientConfig configures a downloader Client.
type ClientConfig struct {
	// ProxyURL routes all requests through an upstream HTTP proxy when set.
	ProxyURL string
	// UserAgent is sent on every request when non-empty.
	UserAgent string
	// InsecureSkipVerify disables TLS certificate verification, matching the
	// browser session's relaxed TLS posture.
	InsecureSkipVerify bool
	// Timeout bounds a whole request including the body transfer.
	Timeout time.Duration
	// MinRequestSpacing throttles successive requests. Zero disables pacing.
	MinRequestSpacing time.Duration
	Logger            *zap.Logger
}

// Client is the standalone downloader. It keeps an accumulated cookie store
// and a referrer that chains across successive requests: every request
// carries the last-set referrer and then becomes the next referrer itself.
type Client struct {
	http    *http.Client
	jar     http.CookieJar
	limiter *rate.Limiter
	ua      string
	logger  *zap.Logger

	mu       sync.Mutex
	referrer string
}

// NewClient builds a downloader from the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnTimeout,
		// The decompression middleware owns content negotiation.
		DisableCompression: true,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	limit := rate.Inf
	if cfg.MinRequestSpacing > 0 {
		limit = rate.Every(cfg.MinRequestSpacing)
	}

	return &Client{
		http: &http.Client{
			Transport: newDecompressionTransport(transport),
			Jar:       jar,
			Timeout:   timeout,
		},
		jar:     jar,
		limiter: rate.NewLimiter(limit, 1),
		ua:      cfg.UserAgent,
		logger:  logger,
	}, nil
}

// ImportCookies copies a browser cookie snapshot into the downloader's jar,
// preserving name, value, path and domain.
func (c *Client) ImportCookies(snapshot CookieSnapshot) {
	for _, ck := range snapshot {
		host := strings.TrimPrefix(ck.Domain, ".")
		if host == "" {
			continue
		}
		u := &url.URL{Scheme: "https", Host: host}
		c.jar.SetCookies(u, []*http.Cookie{{
			Name:   ck.Name,
			Value:  ck.Value,
			Path:   ck.Path,
			Domain: ck.Domain,
		}})
	}
	c.logger.Debug("Imported session cookies into downloader.", zap.Int("count", len(snapshot)))
}

// SetReferrer sets the referrer sent with the next request.
func (c *Client) SetReferrer(referrer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.referrer = referrer
}

// Referrer returns the referrer that will accompany the next request.
func (c *Client) Referrer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.referrer
}

// Get issues a GET carrying the jar's cookies and the current referrer, then
// updates the stored referrer to the requested URL so request sequences chain
// referrers the way a browser hopping between pages would.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %q: %w", rawURL, err)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	if ref := c.Referrer(); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	c.SetReferrer(rawURL)
	return resp, nil
}

// Download fetches rawURL into dir: the body streams to a randomly named temp
// file, the final name comes from the Content-Disposition header, and the
// temp file is renamed into place. A record is appended to the manifest on
// success. When no name can be derived the file keeps its temp name and
// Result.Name is empty.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (Result, error) {
	c.logger.Info("Starting download.", zap.String("url", rawURL))

	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("download of %q returned status %d", rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create download directory %q: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, "tmp_"+uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Best effort: do not leave a partial temp file behind.
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to stream response body: %w", err)
	}

	name := DeriveFileName(resp.Header.Get("Content-Disposition"))
	finalPath := tmpPath
	if name != "" {
		finalPath = filepath.Join(dir, name)
		if err := os.Rename(tmpPath, finalPath); err != nil {
			_ = os.Remove(tmpPath)
			return Result{}, fmt.Errorf("failed to move %q to %q: %w", tmpPath, finalPath, err)
		}
	} else {
		c.logger.Debug("No usable Content-Disposition header, keeping temp name.", zap.String("url", rawURL))
	}

	absPath, err := filepath.Abs(finalPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve absolute path of %q: %w", finalPath, err)
	}

	if err := appendManifest(dir, ManifestRecord{
		URL:          rawURL,
		File:         absPath,
		Size:         size,
		DownloadedAt: time.Now().UTC(),
	}); err != nil {
		// The file is already in place; a manifest hiccup is not fatal.
		c.logger.Warn("Failed to append download manifest record.", zap.Error(err))
	}

	c.logger.Info("Download finished.", zap.String("file", absPath), zap.Int64("bytes", size))
	return Result{Path: absPath, Name: name}, nil
}

// Close releases idle connections held by the underlying client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
