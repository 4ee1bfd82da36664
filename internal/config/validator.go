package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/psidex/wsmonitor/internal/lib"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks ranges, URLs and colors, reporting every problem at once.
func Validate(cfg *Config) error {
	var errs []string

	if _, err := lib.ParseSLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %s", err))
	}

	if cfg.Server.ViewerBuffer < 1 {
		errs = append(errs, "server.viewer_buffer must be at least 1")
	}
	if cfg.Server.IngestRate < 0 || cfg.Server.IngestBurst < 0 {
		errs = append(errs, "server.ingest_rate and server.ingest_burst must not be negative")
	}

	g := cfg.Graph
	for name, d := range map[string]lib.Duration{
		"drain_interval": g.DrainInterval,
		"fade_interval":  g.FadeInterval,
		"fade_deadline":  g.FadeDeadline,
	} {
		if d.Duration < 0 {
			errs = append(errs, fmt.Sprintf("graph.%s must not be negative", name))
		}
	}
	if g.FadeStep < 0 || g.FadeStep > 1 {
		errs = append(errs, "graph.fade_step must be within [0, 1]")
	}
	if g.FadeThreshold < 0 || g.FadeThreshold > 255 {
		errs = append(errs, "graph.fade_threshold must be within [0, 255]")
	}
	if g.ServerColor != "" && !hexColor.MatchString(g.ServerColor) {
		errs = append(errs, fmt.Sprintf("graph.server_color %q is not a #rrggbb color", g.ServerColor))
	}
	for i, c := range g.Palette {
		if !hexColor.MatchString(c) {
			errs = append(errs, fmt.Sprintf("graph.palette[%d] %q is not a #rrggbb color", i, c))
		}
	}
	for i, p := range g.ServerPrefixes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("graph.server_prefixes[%d] is empty", i))
		}
	}

	if cfg.Source.URL != "" {
		if err := checkURL(cfg.Source.URL, "http", "https", "ws", "wss"); err != nil {
			errs = append(errs, "source.url: "+err.Error())
		}
	}
	if cfg.Source.IdleTimeout.Duration < 0 {
		errs = append(errs, "source.idle_timeout must not be negative")
	}

	if cfg.Backend.URL != "" {
		if err := checkURL(cfg.Backend.URL, "http", "https"); err != nil {
			errs = append(errs, "backend.url: "+err.Error())
		}
		if cfg.APIKey == "" {
			errs = append(errs, "backend.url is set but "+EnvAPIKey+" is empty")
		}
	}

	if cfg.Redis.URL != "" {
		if _, err := redis.ParseURL(cfg.Redis.URL); err != nil {
			errs = append(errs, "redis.url: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %s URL", raw, strings.Join(schemes, "/"))
}
