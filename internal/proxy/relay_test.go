package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/elazarl/goproxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelay_RejectsBadUpstream(t *testing.T) {
	_, err := NewRelayAt("127.0.0.1:0", "socks5://127.0.0.1:1080", nil)
	assert.Error(t, err, "non-http upstream scheme should be rejected")

	_, err = NewRelayAt("127.0.0.1:0", "://bad", nil)
	assert.Error(t, err)
}

func TestRelay_ForwardsThroughUpstream(t *testing.T) {
	// Final destination.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello via relay"))
	}))
	defer backend.Close()

	// Upstream proxy the relay chains to.
	upstream := httptest.NewServer(goproxy.NewProxyHttpServer())
	defer upstream.Close()

	relay, err := NewRelayAt("127.0.0.1:0", upstream.URL, nil)
	require.NoError(t, err)
	require.NoError(t, relay.Start())
	defer relay.Close()

	relayURL, err := url.Parse("http://" + relay.Addr())
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(relayURL)}}
	resp, err := client.Get(backend.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello via relay", string(body))
}

func TestRelay_CloseIsIdempotent(t *testing.T) {
	relay, err := NewRelayAt("127.0.0.1:0", "http://127.0.0.1:8080", nil)
	require.NoError(t, err)
	require.NoError(t, relay.Start())

	assert.NoError(t, relay.Close())
	assert.NoError(t, relay.Close())

	// Starting a closed relay fails rather than leaking a listener.
	assert.Error(t, relay.Start())
}
