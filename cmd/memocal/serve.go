package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"memocal/internal/calsync"
	"memocal/internal/editor"
	appLog "memocal/internal/log"
	"memocal/internal/model"
	"memocal/internal/scheduler"
	"memocal/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for the note editor",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(*cobra.Command, []string) error {
	if listenAddr != "" {
		conf.Listen = listenAddr
	}

	appLog.Info("memocal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"locale", conf.Locale,
		"debounce_ms", conf.DebounceMillis,
		"default_target", conf.DefaultTarget,
		"export_dir", conf.ExportDir,
		"refresh", conf.RefreshCron,
	)

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

	loc := location()
	engine, err := newEngine(loc)
	if err != nil {
		return err
	}

	// A nil Service keeps the dispatcher in local-only mode.
	var google calsync.Service
	if token := conf.GoogleToken(); token != "" {
		g, err := calsync.NewGoogle(ctx, calsync.GoogleOptions{
			CalendarID:        conf.Google.CalendarID,
			Token:             token,
			Location:          loc,
			RequestsPerSecond: conf.Google.RequestsPerSecond,
		})
		if err != nil {
			appLog.Error("google calendar unavailable; using calendar files", err)
		} else {
			google = g
		}
	} else {
		appLog.Info("no google credential; google target falls back to calendar files")
	}
	files := calsync.NewFileStore(conf.ExportDir, loc)

	// Queued jobs finish after shutdown starts, so they get their own context.
	disp := calsync.NewDispatcher(google, files)
	disp.Start(context.Background())

	target, err := model.ParseTarget(conf.DefaultTarget, model.TargetGoogle)
	if err != nil {
		return err
	}
	session := editor.New(engine, disp, editor.Options{
		Debounce:      conf.Debounce(),
		DefaultTarget: target,
		ListWindow:    time.Duration(conf.ListWindowDays) * 24 * time.Hour,
	})
	disp.OnResult(session.ApplyResult)

	sched, err := scheduler.New(conf.RefreshCron, loc, session.Refresh)
	if err != nil {
		return err
	}
	sched.Start()
	go func() {
		if err := sched.RunNow(); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}()

	err = web.StartServer(ctx, conf, session)

	sched.Stop()
	session.Close()
	disp.Close()
	appLog.Info("memocal exiting")

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
