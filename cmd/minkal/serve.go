package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "minkal/internal/log"
	"minkal/internal/scheduler"
	"minkal/internal/web"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		listen := a.cfg.Listen
		if listenFlag != "" {
			listen = listenFlag
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Start with whatever the sources give us; a failed first fetch still
		// leaves an empty, renderable state.
		if err := a.state.Refresh(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}

		sched, err := scheduler.New(scheduler.Config{
			Tick:     a.cfg.TickCron,
			Rollover: a.cfg.RolloverCron,
			Refresh:  a.cfg.RefreshCron,
			Location: a.loc,
		}, a.state)
		if err != nil {
			return err
		}

		srv := web.NewServer(web.Options{
			State:       a.state,
			Preferences: a.prefs,
			Calendars:   a.calendarNames(),
			BasicAuth:   a.cfg.BasicAuth,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx, listen)
		})
		g.Go(func() error {
			sched.Start()
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return sched.Stop(stopCtx)
		})

		appLog.Info("minkal started", "listen", listen, "version", version)
		err = g.Wait()
		appLog.Info("minkal stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "override the listen address from the config")
}
