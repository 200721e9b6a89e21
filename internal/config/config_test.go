package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigFromDefaults(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestSetDefaults_ProducesValidConfig(t *testing.T) {
	cfg := newConfigFromDefaults(t)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "pagedriver", cfg.Logger.ServiceName)
	assert.Equal(t, 60*time.Second, cfg.Browser.Timeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1500*time.Millisecond, cfg.Gate.Interval)
	assert.Equal(t, ".", cfg.Download.WorkDir)
}

func TestValidate_RejectsNegativeDurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative browser timeout", func(c *Config) { c.Browser.Timeout = -time.Second }},
		{"negative gate interval", func(c *Config) { c.Gate.Interval = -time.Millisecond }},
		{"negative request spacing", func(c *Config) { c.Download.MinRequestSpacing = -time.Second }},
		{"empty work dir", func(c *Config) { c.Download.WorkDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfigFromDefaults(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUnmarshal_EnvStyleOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.proxy_url", "http://127.0.0.1:8080")
	v.Set("browser.timeout", "30s")
	v.Set("gate.interval", "2s")

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Browser.ProxyURL)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Gate.Interval)
}
