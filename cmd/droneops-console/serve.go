package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"droneops-console/internal/profile"
	"droneops-console/internal/server"
)

var (
	serveHTTPAddr    string
	servePrintEvents bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console headless behind the web dashboard",
	Long:  "serve connects the system event stream and exposes the console over HTTP and WebSocket only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("http") {
			cfg.HTTPAddr = serveHTTPAddr
		}
		if cfg.HTTPAddr == "" {
			return errors.New("http address required")
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		con, cleanup, err := newConsole(cfg, cfg.Record, servePrintEvents, log)
		if err != nil {
			return err
		}
		defer cleanup()
		defer con.Close()

		if err := con.Start(ctx); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		srv := server.New(con, log)
		g.Go(func() error { return srv.Start(gctx, cfg.HTTPAddr) })
		if isProfileFile(cfg.Profile) {
			g.Go(func() error { return profile.Watch(gctx, cfg.Profile, log, con.SetProfile) })
		}
		err = g.Wait()
		log.Info("console stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&servePrintEvents, "print-events", false, "Print system events to STDOUT")
}
