package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"querycal/internal/app"
	"querycal/internal/config"
	appLog "querycal/internal/log"
	"querycal/internal/metrics"
	"querycal/internal/query"
	"querycal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	flags := parseFlags()
	appLog.SetLevel(appLog.ParseLevel(flags.logLevel))
	appLog.Info("querycal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"source", conf.Source.Kind,
		"title", conf.Calendar.Mapping.Title,
		"start", conf.Calendar.Mapping.Start,
		"group_by", conf.Calendar.Mapping.GroupBy,
		"once", flags.once,
	)

	src, err := query.New(conf.Source, app.ResolveLocation(conf.Timezone))
	if err != nil {
		appLog.Error("failed to build source", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		if err := runOnce(ctx, conf, src); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	m := metrics.New()
	a := app.New(conf, flags.configPath, src, m)

	if _, err := a.Refresh(ctx); err != nil {
		// Keep serving; the next scheduled refresh may succeed.
		appLog.Error("initial refresh failed", err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := a.Refresh(rctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := web.NewServer(a, conf.BasicAuth, m)
	if err := web.ListenAndServe(ctx, conf.Listen, srv.Handler()); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("querycal exiting")
}

// runOnce fetches the source once and prints the projected snapshot.
// Option changes are never written back in this mode.
func runOnce(ctx context.Context, conf *config.Config, src query.Source) error {
	a := app.New(conf, "", src, nil)
	snap, err := a.Refresh(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/querycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&cfg.once, "once", false, "Fetch and project once, print the result as JSON and exit")

	flag.Parse()

	return cfg
}
