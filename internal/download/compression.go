// File: internal/download/compression.go
package download

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decompressionTransport is an http.RoundTripper that advertises compression
// support on outgoing requests and transparently decompresses response
// bodies. The base transport must run with DisableCompression so content
// negotiation stays under this middleware's control.
type decompressionTransport struct {
	base http.RoundTripper
}

func newDecompressionTransport(base http.RoundTripper) *decompressionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decompressionTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *decompressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// bodyWrapper closes both the decompression reader and the original network
// body.
type bodyWrapper struct {
	io.Reader
	decoder      io.Closer
	originalBody io.ReadCloser
}

func (w *bodyWrapper) Close() error {
	var err1 error
	if w.decoder != nil {
		err1 = w.decoder.Close()
	}
	return errors.Join(err1, w.originalBody.Close())
}

// decompressResponse wraps resp.Body with the decoder matching its
// Content-Encoding header. Multiple listed encodings are applied in reverse
// order. On success the Content-Encoding and Content-Length headers are
// cleared and resp.Uncompressed is set.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	originalBody := resp.Body
	var reader io.Reader = originalBody
	var lastDecoder io.Closer

	for i := len(encodings) - 1; i >= 0; i-- {
		switch encoding := strings.ToLower(strings.TrimSpace(encodings[i])); encoding {
		case "gzip":
			zr, err := gzip.NewReader(reader)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader, lastDecoder = zr, zr
		case "deflate":
			dr, err := newDeflateReader(reader)
			if err != nil {
				return fmt.Errorf("deflate initialization error: %w", err)
			}
			reader, lastDecoder = dr, dr
		case "br":
			reader, lastDecoder = brotli.NewReader(reader), nil
		case "identity", "":
			// Nothing to decode.
		default:
			return fmt.Errorf("unsupported content encoding %q", encoding)
		}
	}

	resp.Body = &bodyWrapper{Reader: reader, decoder: lastDecoder, originalBody: originalBody}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// newDeflateReader handles both zlib-wrapped and raw deflate streams. Servers
// disagree on which one "deflate" means, so the stream is buffered and the
// zlib attempt falls back to raw flate.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	buffered := &peekReader{src: r, buffering: true}
	if zr, err := zlib.NewReader(buffered); err == nil {
		buffered.commit()
		return zr, nil
	}
	buffered.rewind()
	return flate.NewReader(buffered), nil
}

// peekReader buffers what is read from src so the stream can be replayed
// after a failed decoder probe. Buffering stops once the probe settles.
type peekReader struct {
	src       io.Reader
	buffering bool
	consumed  []byte
	replay    []byte
}

func (p *peekReader) Read(b []byte) (int, error) {
	if len(p.replay) > 0 {
		n := copy(b, p.replay)
		p.replay = p.replay[n:]
		return n, nil
	}
	n, err := p.src.Read(b)
	if n > 0 && p.buffering {
		p.consumed = append(p.consumed, b[:n]...)
	}
	return n, err
}

func (p *peekReader) rewind() {
	p.replay = p.consumed
	p.commit()
}

func (p *peekReader) commit() {
	p.buffering = false
	p.consumed = nil
}
