package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type GrafanaConfig struct {
	Host    string `yaml:"host"`     // Grafana host:port serving the d-solo endpoint
	OrgID   int    `yaml:"org_id"`   // Grafana organisation (default 1)
	Refresh string `yaml:"refresh"`  // Panel auto-refresh (default "10s")
	From    int64  `yaml:"from"`     // Time range start, epoch milliseconds
	To      int64  `yaml:"to"`       // Time range end, epoch milliseconds
	PanelID int    `yaml:"panel_id"` // Panel within the dashboard (default 1)
}

type StyleConfig struct {
	PresetsFile    string `yaml:"presets_file"`     // Optional .yaml/.yml/.toml presets file
	SyncIntervalMs int    `yaml:"sync_interval_ms"` // View style check period (default 20)
	Watch          bool   `yaml:"watch"`            // Reload presets_file on change
}

type ProbeConfig struct {
	Enabled     bool `yaml:"enabled"`      // Ping the Grafana host periodically
	IntervalSec int  `yaml:"interval_sec"` // Probe period (default 30)
	Count       int  `yaml:"count"`        // Echo requests per probe (default 3)
	TimeoutSec  int  `yaml:"timeout_sec"`  // Per-probe timeout (default 5)
	Privileged  bool `yaml:"privileged"`   // Raw ICMP sockets instead of UDP
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`          // Limit panel requests per client
	RequestsPerMin int  `yaml:"requests_per_min"` // Sustained rate per IP (default 120)
	BurstSize      int  `yaml:"burst_size"`       // Burst allowance (default 20)
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`     // Cache rendered panel pages
	MaxEntries int  `yaml:"max_entries"` // Max cached pages (default 500)
	TTLSec     int  `yaml:"ttl_sec"`     // Page TTL in seconds (default 300)
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // Serve Prometheus metrics at /metrics
}

type DashboardConfig struct {
	Password string `yaml:"password"` // Optional password protecting /panel and /presets
}

type LoggingConfig struct {
	Format string `yaml:"format"` // "json" or "text" (default "text")
}

type Config struct {
	ListenAddr string          `yaml:"listen_addr"` // e.g. ":8090"
	Grafana    GrafanaConfig   `yaml:"grafana"`
	Style      StyleConfig     `yaml:"style"`
	Probe      ProbeConfig     `yaml:"probe"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Cache      CacheConfig     `yaml:"cache"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Dashboard  DashboardConfig `yaml:"dashboard"`
	Logging    LoggingConfig   `yaml:"logging"`

	configPath string `yaml:"-"`
}

// ConfigPath returns the path to the loaded config file.
func (c *Config) ConfigPath() string { return c.configPath }

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		ListenAddr: ":8090",
		Metrics:    MetricsConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{
		ListenAddr: ":8090",
		Metrics:    MetricsConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Grafana.Host == "" {
		c.Grafana.Host = "localhost:32000"
	}
	if c.Grafana.OrgID == 0 {
		c.Grafana.OrgID = 1
	}
	if c.Grafana.Refresh == "" {
		c.Grafana.Refresh = "10s"
	}
	if c.Grafana.From == 0 && c.Grafana.To == 0 {
		c.Grafana.From = 1691451277822
		c.Grafana.To = 1691472877822
	}
	if c.Grafana.PanelID == 0 {
		c.Grafana.PanelID = 1
	}

	if c.Style.SyncIntervalMs == 0 {
		c.Style.SyncIntervalMs = 20
	}

	if c.Probe.Enabled && c.Probe.IntervalSec == 0 {
		c.Probe.IntervalSec = 30
	}
	if c.Probe.Enabled && c.Probe.Count == 0 {
		c.Probe.Count = 3
	}
	if c.Probe.Enabled && c.Probe.TimeoutSec == 0 {
		c.Probe.TimeoutSec = 5
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin == 0 {
		c.RateLimit.RequestsPerMin = 120
	}
	if c.RateLimit.Enabled && c.RateLimit.BurstSize == 0 {
		c.RateLimit.BurstSize = 20
	}

	if c.Cache.Enabled && c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 500
	}
	if c.Cache.Enabled && c.Cache.TTLSec == 0 {
		c.Cache.TTLSec = 300
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Grafana.To < c.Grafana.From {
		return fmt.Errorf("grafana: to (%d) is before from (%d)", c.Grafana.To, c.Grafana.From)
	}
	if c.Style.SyncIntervalMs < 0 {
		return fmt.Errorf("style: sync_interval_ms must be positive")
	}
	if c.Style.Watch && c.Style.PresetsFile == "" {
		return fmt.Errorf("style: watch requires presets_file")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}
