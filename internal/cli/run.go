package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/zsprackett/usagebar/internal/notify"
	"github.com/zsprackett/usagebar/internal/ui"
	"github.com/zsprackett/usagebar/internal/usagepoller"
	"github.com/zsprackett/usagebar/internal/webserver"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Show the usage indicator (default)",
	RunE:  runApp,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runApp(cmd *cobra.Command, _ []string) error {
	errOut := cmd.ErrOrStderr()
	cfg := loadConfig(errOut)
	logger, closer := initLogger(cfg, errOut, false)
	defer closer.Close()

	durs, err := cfg.Durations()
	if err != nil {
		logger.Warn("invalid durations in config, using defaults", "err", err)
	}

	if err := checkBinary(); err != nil {
		logger.Error("startup check failed", "err", err)
		return err
	}

	store, err := openDB()
	if err != nil {
		return err
	}
	defer store.Close()

	notifier := notify.New(notify.Config{
		Enabled: cfg.Notifications.Enabled,
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, logger)

	var app *ui.App
	poller := newPoller(cfg, durs, store, usagepoller.Options{
		Alerter: notifier,
		OnUpdate: func() {
			if app != nil {
				app.Redraw()
			}
		},
	}, logger)

	web := webserver.New(poller, webserver.Config{
		Enabled:   cfg.Webserver.Enabled,
		Port:      cfg.Webserver.Port,
		Host:      cfg.Webserver.Host,
		JWTSecret: cfg.Webserver.Auth.JWTSecret,
	}, logger)
	poller.SetBroadcaster(web)
	if err := web.Start(); err != nil {
		logger.Warn("webserver failed to start", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		web.Shutdown(ctx)
	}()

	app = ui.NewApp(poller, cfg.AlertThreshold, logger)
	defer poller.Stop()
	logger.Info("usagebar starting", "version", Version)
	return app.Run()
}
