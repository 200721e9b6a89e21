// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Gate     GateConfig     `mapstructure:"gate" yaml:"gate"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
}

// LoggerConfig controls the zap logger and the optional rotated file sink.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures the single browser session.
type BrowserConfig struct {
	// UserAgent overrides the default user agent string when non-empty.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// Timeout bounds navigation and await-selector waits. Zero means the
	// session default (60s).
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// ProxyURL is the upstream HTTP proxy. When set, the browser is routed
	// through the local relay, which chains to this address.
	ProxyURL string `mapstructure:"proxy_url" yaml:"proxy_url"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
}

// GateConfig configures the interaction gate.
type GateConfig struct {
	// Interval is the minimum spacing between consecutive gated actions.
	// Zero means the gate default (1500ms).
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DownloadConfig configures the standalone downloader.
type DownloadConfig struct {
	// WorkDir is where downloaded files and the manifest land.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	// MinRequestSpacing throttles successive downloader requests.
	MinRequestSpacing time.Duration `mapstructure:"min_request_spacing" yaml:"min_request_spacing"`
}

// SetDefaults registers the default values on the given viper instance.
// Called before Unmarshal so a missing config file yields a working setup.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pagedriver")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", 60*time.Second)

	v.SetDefault("gate.interval", 1500*time.Millisecond)

	v.SetDefault("download.work_dir", ".")
	v.SetDefault("download.min_request_spacing", 500*time.Millisecond)
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout must not be negative, got %s", c.Browser.Timeout)
	}
	if c.Gate.Interval < 0 {
		return fmt.Errorf("gate.interval must not be negative, got %s", c.Gate.Interval)
	}
	if c.Download.MinRequestSpacing < 0 {
		return fmt.Errorf("download.min_request_spacing must not be negative, got %s", c.Download.MinRequestSpacing)
	}
	if c.Download.WorkDir == "" {
		return fmt.Errorf("download.work_dir must not be empty")
	}
	return nil
}
