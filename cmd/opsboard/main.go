package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsboard/internal/action"
	"opsboard/internal/config"
	"opsboard/internal/feed"
	appLog "opsboard/internal/log"
	"opsboard/internal/refresh"
	"opsboard/internal/timerange"
	"opsboard/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	mode       string
	once       bool
}

func main() {
	appLog.Info("opsboard starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI flags override the config file where provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.mode != "" {
		conf.Mode = flags.mode
	}

	mode, modeConf, err := conf.ActiveMode()
	if err != nil {
		appLog.Error("invalid mode configuration", err, "mode", conf.Mode)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"mode", mode,
		"once", flags.once,
	)

	ctrl, err := newController(conf, mode, modeConf)
	if err != nil {
		appLog.Error("failed to build range controller", err, "mode", mode)
		os.Exit(1)
	}

	client, err := feed.NewClient(mode, modeConf)
	if err != nil {
		appLog.Error("failed to build schedule client", err, "mode", mode)
		os.Exit(1)
	}
	adapter := feed.NewAdapter(client)

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

	if flags.once {
		runOnce(ctx, adapter, ctrl.Range())
		return
	}

	board := feed.NewBoard(ctrl, adapter)
	board.Refresh(ctx)

	// Thread actions always go through the contractor API, regardless of
	// which mode this instance serves.
	threadBase := modeConf.BaseURL
	if cc, ok := conf.Modes["contractor"]; ok && cc.BaseURL != "" {
		threadBase = cc.BaseURL
	}
	dispatcher := action.NewDispatcher(action.NewThreadClient(threadBase))

	refresher, err := refresh.Start(conf.RefreshCron, board)
	if err != nil {
		appLog.Error("failed to schedule background refresh", err, "cron", conf.RefreshCron)
		os.Exit(1)
	}
	defer refresher.Stop()

	server := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, board, dispatcher).Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", serveErr)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	board.Wait()
	appLog.Info("opsboard exiting")
}

// newController builds the range controller for the active mode, applying
// any config overrides of the zoom allow-list and initial zoom.
func newController(conf *config.Config, mode string, mc config.ModeConfig) (*timerange.Controller, error) {
	opts := timerange.Options{
		Mode:      mode,
		Location:  conf.Location(),
		WeekStart: conf.WeekStartWeekday(),
	}
	for _, z := range mc.Zooms {
		opts.AllowedZooms = append(opts.AllowedZooms, timerange.Zoom(z))
	}
	if mc.InitialZoom != "" {
		opts.InitialZoom = timerange.Zoom(mc.InitialZoom)
	}
	return timerange.NewController(opts)
}

// runOnce performs a single synchronous load of the default window and
// dumps the snapshot as JSON to stdout.
func runOnce(ctx context.Context, adapter *feed.Adapter, rng timerange.Range) {
	snap, err := adapter.Load(ctx, rng)
	if err != nil {
		appLog.Error("one-shot load failed", err, "range", rng.Key())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		appLog.Error("failed to encode snapshot", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/opsboard/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.mode, "mode", "", "Operating mode (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the default window once, print the snapshot as JSON, and exit")

	flag.Parse()

	return cfg
}
