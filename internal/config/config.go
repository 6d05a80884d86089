package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig      *AppConfig
	BrowserConfig  *BrowserConfig
	SessionConfig  *SessionConfig
	MonitorConfig  *MonitorConfig
	SnapshotConfig *SnapshotConfig
	HTTPConfig     *HTTPConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"APP_DEBUG" default:"false"`
	Tracing  bool   `envconfig:"APP_TRACING" default:"false"`
	Console  bool   `envconfig:"APP_CONSOLE" default:"true"`
}

type BrowserConfig struct {
	DebugHost   string        `envconfig:"BROWSER_DEBUG_HOST" default:"localhost"`
	DebugPort   int           `envconfig:"BROWSER_DEBUG_PORT" default:"9222"`
	ListTimeout time.Duration `envconfig:"BROWSER_LIST_TIMEOUT" default:"2s"`
}

// ListURL is the target listing endpoint of the remote debugging server.
func (c *BrowserConfig) ListURL() string {
	return "http://" + c.DebugHost + ":" + strconv.Itoa(c.DebugPort) + "/json/list"
}

type SessionConfig struct {
	CommandTimeout time.Duration `envconfig:"SESSION_COMMAND_TIMEOUT" default:"30s"`
	DialTimeout    time.Duration `envconfig:"SESSION_DIAL_TIMEOUT" default:"10s"`
	MaxMessageSize int64         `envconfig:"SESSION_MAX_MESSAGE_SIZE" default:"31457280"`
}

type MonitorConfig struct {
	PollInterval   time.Duration `envconfig:"MONITOR_POLL_INTERVAL" default:"1500ms"`
	IgnoreURLs     []string      `envconfig:"MONITOR_IGNORE_URLS"`
	MaxConcurrency int           `envconfig:"MONITOR_MAX_CONCURRENCY" default:"4"`
	SettleDelay    time.Duration `envconfig:"MONITOR_SETTLE_DELAY" default:"1s"`
	LoadTimeout    time.Duration `envconfig:"MONITOR_LOAD_TIMEOUT" default:"15s"`
	FetchMarkup    bool          `envconfig:"MONITOR_FETCH_MARKUP" default:"true"`
	Markdown       bool          `envconfig:"MONITOR_MARKDOWN" default:"false"`
	Screenshots    bool          `envconfig:"MONITOR_SCREENSHOTS" default:"false"`
}

type SnapshotConfig struct {
	HighlightElements bool     `envconfig:"SNAPSHOT_HIGHLIGHT_ELEMENTS" default:"false"`
	ViewportExpansion int      `envconfig:"SNAPSHOT_VIEWPORT_EXPANSION" default:"0"`
	IncludeAttributes []string `envconfig:"SNAPSHOT_INCLUDE_ATTRIBUTES"`
}

type HTTPConfig struct {
	Enabled bool   `envconfig:"HTTP_ENABLED" default:"false"`
	Addr    string `envconfig:"HTTP_ADDR" default:"127.0.0.1:8765"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if conf.MonitorConfig.MaxConcurrency < 1 {
		conf.MonitorConfig.MaxConcurrency = 1
	}

	return &conf, nil
}
