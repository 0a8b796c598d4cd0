package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"turnero/internal/assistant"
	"turnero/internal/backup"
	"turnero/internal/config"
	"turnero/internal/engine"
	appLog "turnero/internal/log"
	"turnero/internal/model"
	"turnero/internal/store"
	"turnero/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	dataDir    string
	debug      bool
}

func main() {
	appLog.Info("turnero starting", "version", "0.3.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file when provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataDir != "" {
		conf.DataDir = flags.dataDir
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"data_dir", conf.DataDir,
		"history_cap", conf.HistoryCap,
		"grid", conf.Grid,
		"backup_cron", conf.Backup.Cron,
	)

	st, err := store.Open(conf.DataDir)
	if err != nil {
		appLog.Error("failed to open store", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}

	// Load failures are logged inside Load and fall back to an empty book;
	// the application still starts.
	initial, err := st.Load()
	if err != nil {
		appLog.Error("store load incomplete, continuing with partial snapshot", err)
	}
	appLog.Info("book loaded",
		"patients", len(initial.Patients),
		"appointments", len(initial.Appointments),
	)

	eng := engine.New(conf.HistoryCap, initial)
	eng.OnCommit(func(s model.AppState) {
		if err := st.Save(s); err != nil {
			appLog.Error("failed to persist snapshot", err)
		}
	})

	runner, err := backup.Start(conf.Backup.Cron, conf.DataDir, conf.Backup.Retention, eng.State)
	if err != nil {
		appLog.Error("failed to start backup scheduler", err, "cron", conf.Backup.Cron)
		os.Exit(1)
	}
	defer runner.Stop()

	var assist *assistant.Client
	if conf.Assistant.Endpoint != "" {
		assist = assistant.NewClient(conf.Assistant)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := web.StartServer(ctx, conf, eng, st, assist); err != nil {
		appLog.Error("HTTP server stopped", err)
		os.Exit(1)
	}

	appLog.Info("turnero exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/turnero/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataDir, "data", "", "Data directory (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
