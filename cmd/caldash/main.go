package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"caldash/internal/config"
	appLog "caldash/internal/log"
	"caldash/internal/store"
	"caldash/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	migrateOnly bool
}

func main() {
	appLog.Info("caldash starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"authors", len(conf.Authors),
		"retention_days", conf.RetentionDays,
		"basic_auth", conf.BasicAuth != nil,
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

	st, err := store.Connect(ctx, conf.Database.DSN())
	if err != nil {
		appLog.Error("failed to connect to database", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		appLog.Error("failed to ensure schema", err)
		os.Exit(1)
	}
	if flags.migrateOnly {
		appLog.Info("schema ensured, exiting (-migrate-only)")
		return
	}

	srv := web.NewServer(conf, st)

	// Warm the current window once so the first page load is served from
	// cache, then keep it warm on the configured schedule.
	if err := srv.RefreshWindow(ctx); err != nil {
		appLog.Error("initial window refresh failed", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := srv.RefreshWindow(ctx); err != nil {
			appLog.Error("scheduled window refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron spec", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	if conf.RetentionDays > 0 {
		retention := conf.RetentionDays
		if _, err := c.AddFunc("30 3 * * *", func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -retention)
			removed, err := st.PurgeBefore(ctx, cutoff)
			if err != nil {
				appLog.Error("retention purge failed", err)
				return
			}
			appLog.Info("retention purge completed",
				"cutoff", cutoff.Format("2006-01-02"),
				"removed", removed,
			)
		}); err != nil {
			appLog.Error("failed to schedule retention purge", err)
			os.Exit(1)
		}
	}
	c.Start()
	defer c.Stop()

	if err := srv.Serve(ctx); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}

	appLog.Info("caldash exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/caldash/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.migrateOnly, "migrate-only", false, "Ensure the database schema and exit")

	flag.Parse()
	return cfg
}
