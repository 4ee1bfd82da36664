package config

import (
	"time"

	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/monitor"
)

// Config is the top-level YAML structure.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// Hostname is the root node id, "S-" + the machine hostname when empty.
	Hostname string `yaml:"hostname"`

	Server  ServerConf  `yaml:"server"`
	Graph   GraphConf   `yaml:"graph"`
	Source  SourceConf  `yaml:"source"`
	Backend BackendConf `yaml:"backend"`
	Redis   RedisConf   `yaml:"redis"`

	// APIKey guards the admin routes and is sent to the backend, from WS_MONITOR_KEY.
	APIKey string `yaml:"-"`
	// Token authenticates the socket.io connection, from WS_MONITOR_TOKEN.
	Token string `yaml:"-"`
}

type ServerConf struct {
	BindAddress string `yaml:"bind_address"`
	// StaticDir is served at /, nothing is served there when empty.
	StaticDir    string       `yaml:"static_dir"`
	ViewerBuffer int          `yaml:"viewer_buffer"`
	WriteTimeout lib.Duration `yaml:"write_timeout"`
	// IngestRate is the sustained events/second accepted by POST /api/events.
	IngestRate  float64 `yaml:"ingest_rate"`
	IngestBurst int     `yaml:"ingest_burst"`
}

// GraphConf mirrors monitor.Options, zero values take the monitor defaults.
type GraphConf struct {
	DrainInterval  lib.Duration `yaml:"drain_interval"`
	FadeInterval   lib.Duration `yaml:"fade_interval"`
	FadeDeadline   lib.Duration `yaml:"fade_deadline"`
	FadeStep       float64      `yaml:"fade_step"`
	FadeThreshold  int          `yaml:"fade_threshold"`
	ServerPrefixes []string     `yaml:"server_prefixes"`
	ServerRadius   float64      `yaml:"server_radius"`
	ServerColor    string       `yaml:"server_color"`
	LabelLength    int          `yaml:"label_length"`
	Palette        []string     `yaml:"palette"`
}

type SourceConf struct {
	// URL of the backend socket.io endpoint, the live feed is disabled when empty.
	URL                string       `yaml:"url"`
	Namespace          string       `yaml:"namespace"`
	InsecureSkipVerify bool         `yaml:"insecure_skip_verify"`
	ConnectTimeout     lib.Duration `yaml:"connect_timeout"`
	// IdleTimeout drops participants not seen for this long, 0 disables sweeping.
	IdleTimeout   lib.Duration `yaml:"idle_timeout"`
	SweepSchedule string       `yaml:"sweep_schedule"`
}

type BackendConf struct {
	// URL of the backend admin API, the admin routes are disabled when empty.
	URL     string       `yaml:"url"`
	Timeout lib.Duration `yaml:"timeout"`
}

// RedisConf points at the backend's Redis, where it keeps the emitter half of each
// relayed event. Enrichment is disabled when URL is empty.
type RedisConf struct {
	URL     string       `yaml:"url"`
	Timeout lib.Duration `yaml:"timeout"`
}

// Options converts the graph section into controller options.
func (g GraphConf) Options() monitor.Options {
	return monitor.Options{
		DrainInterval:  g.DrainInterval.Duration,
		FadeInterval:   g.FadeInterval.Duration,
		FadeDeadline:   g.FadeDeadline.Duration,
		FadeStep:       g.FadeStep,
		FadeThreshold:  g.FadeThreshold,
		ServerPrefixes: g.ServerPrefixes,
		ServerRadius:   g.ServerRadius,
		ServerColor:    g.ServerColor,
		LabelLength:    g.LabelLength,
		Palette:        g.Palette,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = ":8080"
	}
	if cfg.Server.ViewerBuffer == 0 {
		cfg.Server.ViewerBuffer = 256
	}
	if cfg.Server.WriteTimeout.Duration == 0 {
		cfg.Server.WriteTimeout = lib.DurationFrom(5 * time.Second)
	}
	if cfg.Server.IngestRate == 0 {
		cfg.Server.IngestRate = 50
	}
	if cfg.Server.IngestBurst == 0 {
		cfg.Server.IngestBurst = 100
	}
	if len(cfg.Graph.ServerPrefixes) == 0 {
		// The backend names itself both "S-<host>" and "Server-<host>".
		cfg.Graph.ServerPrefixes = []string{"s-", "server-"}
	}
	if cfg.Source.Namespace == "" {
		cfg.Source.Namespace = "/"
	}
	if cfg.Source.ConnectTimeout.Duration == 0 {
		cfg.Source.ConnectTimeout = lib.DurationFrom(15 * time.Second)
	}
	if cfg.Source.SweepSchedule == "" {
		cfg.Source.SweepSchedule = "@every 5s"
	}
	if cfg.Redis.Timeout.Duration == 0 {
		cfg.Redis.Timeout = lib.DurationFrom(500 * time.Millisecond)
	}
	if cfg.Backend.Timeout.Duration == 0 {
		cfg.Backend.Timeout = lib.DurationFrom(10 * time.Second)
	}
}
