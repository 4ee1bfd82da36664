package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/config"
	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/monitor"
	"github.com/psidex/wsmonitor/internal/source"
	"github.com/psidex/wsmonitor/internal/testctl"
	"github.com/psidex/wsmonitor/internal/webserver"
)

func main() {
	cfgPath := flag.String("config", "", "path to the YAML config, defaults and environment only when empty")
	envPath := flag.String("env", ".env", "dotenv file to load before reading the environment")
	staticDir := flag.String("d", "", "the directory to serve static files from, overrides server.static_dir")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load env: %s", err)
	}

	loader, err := config.NewLoader(nil, *cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	cfg := loader.Config()

	level, err := lib.ParseSLogLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %s", err)
	}
	logger := lib.NiceLogger(os.Stdout, level)
	slog.SetDefault(logger)

	hostname := cfg.Hostname
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			log.Fatalf("Failed to get hostname: %s", err)
		}
		hostname = "S-" + h
	}

	hub := webserver.NewHub(logger, cfg.Server.ViewerBuffer, cfg.Server.WriteTimeout.Duration)
	network := chart.NewNetwork(hub)
	ctl := monitor.New(logger, network, cfg.Graph.Options())
	if err := ctl.Init(hostname); err != nil {
		log.Fatalf("Failed to init graph: %s", err)
	}

	tracker := source.NewTracker(hostname)
	applier := source.NewApplier(logger, ctl, tracker)

	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis url: %s", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		applier.SetEnricher(source.NewRedisEnricher(rdb), cfg.Redis.Timeout.Duration)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeper *source.Sweeper
	if cfg.Source.IdleTimeout.Duration > 0 {
		sweeper, err = source.NewSweeper(logger, tracker, ctl, cfg.Source.IdleTimeout.Duration, cfg.Source.SweepSchedule)
		if err != nil {
			log.Fatalf("Invalid sweep schedule: %s", err)
		}
		sweeper.Start()
	}

	var feed *source.SocketIO
	if cfg.Source.URL != "" {
		feed, err = source.DialSocketIO(ctx, logger, source.SocketIOConfig{
			URL:                cfg.Source.URL,
			Namespace:          cfg.Source.Namespace,
			Token:              cfg.Token,
			InsecureSkipVerify: cfg.Source.InsecureSkipVerify,
			ConnectTimeout:     cfg.Source.ConnectTimeout.Duration,
		}, applier)
		if err != nil {
			// Events can still be pushed to /api/events.
			logger.Error("Monitor feed unavailable", "err", err)
		}
	}

	deps := webserver.Deps{
		Logger:         logger,
		Hub:            hub,
		Network:        network,
		Controller:     ctl,
		Applier:        applier,
		APIKey:         cfg.APIKey,
		StaticDir:      cfg.Server.StaticDir,
		IngestRate:     cfg.Server.IngestRate,
		IngestBurst:    cfg.Server.IngestBurst,
		BackendTimeout: cfg.Backend.Timeout.Duration,
	}
	if *staticDir != "" {
		deps.StaticDir = *staticDir
	}
	if cfg.Backend.URL != "" {
		backend, err := testctl.NewClient(logger, cfg.Backend.URL, cfg.APIKey, &http.Client{
			Timeout: cfg.Backend.Timeout.Duration,
		})
		if err != nil {
			log.Fatalf("Invalid backend: %s", err)
		}
		deps.Backend = backend
	}

	loader.OnChange(func(newCfg *config.Config) {
		ctl.SetOptions(newCfg.Graph.Options())
		logger.Info("Graph options reloaded")
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		logger.Warn("Config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:              cfg.Server.BindAddress,
		Handler:           webserver.Routes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting webserver", "address", cfg.Server.BindAddress, "root", hostname)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	if feed != nil {
		feed.Close()
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	hub.Close()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)

	ctl.Teardown()
}
