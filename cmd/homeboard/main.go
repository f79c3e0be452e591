package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"homeboard/internal/config"
	"homeboard/internal/ics"
	appLog "homeboard/internal/log"
	"homeboard/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dump       bool
}

func main() {
	// Optional .env for deployments that prefer env vars over flags.
	_ = godotenv.Load()

	if lvl := os.Getenv("HOMEBOARD_LOG_LEVEL"); lvl != "" {
		appLog.SetLevel(appLog.ParseLevel(lvl))
	}

	appLog.Info("homeboard starting", "version", "0.1.0")

	flags := parseFlags()
	if env := os.Getenv("HOMEBOARD_CONFIG"); env != "" && flags.configPath == defaultConfigPath {
		flags.configPath = env
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI/env listen overrides the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	} else if env := os.Getenv("HOMEBOARD_LISTEN"); env != "" {
		conf.Listen = env
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"weeks_ahead", conf.WeeksAhead,
		"feed_count", len(conf.Feeds),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		runOnce(ctx, conf, flags.dump)
		return
	}

	server := web.NewServer(conf)

	// Warm the events cache before the first widget poll.
	server.Refresh(ctx)

	// Background feed refresh on the configured cron schedule.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer refreshCancel()
		server.Refresh(refreshCtx)
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	appLog.Info("homeboard exiting")
}

// runOnce executes a single fetch+parse+merge cycle, optionally dumping
// the merged events as JSON to stdout.
func runOnce(ctx context.Context, conf *config.Config, dump bool) {
	loc := time.Local
	if conf.Timezone != "" {
		if l, err := time.LoadLocation(conf.Timezone); err == nil {
			loc = l
		}
	}

	feeds := make([]ics.Feed, 0, len(conf.Feeds))
	for _, fc := range conf.Feeds {
		feeds = append(feeds, ics.Feed{Name: fc.Name, URL: fc.URL, Color: fc.Color})
	}

	fetcher := ics.NewFetcher(conf.CacheDir)
	merged, errs := ics.Aggregate(ctx, fetcher, feeds, ics.ParseOptions{Location: loc})
	appLog.Info("single cycle complete", "event_count", len(merged), "error_count", len(errs))

	if dump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(merged); err != nil {
			appLog.Error("failed to dump events", err)
			os.Exit(1)
		}
	}

	if len(errs) > 0 {
		os.Exit(1)
	}
}

const defaultConfigPath = "./config.yaml"

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath, "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+parse cycle and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "With -once, dump merged events as JSON to stdout")

	flag.Parse()

	return cfg
}
