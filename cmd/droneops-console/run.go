package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"droneops-console/internal/profile"
	"droneops-console/internal/server"
	"droneops-console/internal/tui"
)

const defaultTUILogFile = "droneops-console.log"

var runHTTPAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive operator console",
	Long: "run opens the terminal console, connects the system event stream and, unless --http is empty, " +
		"serves the web dashboard alongside it. Logs go to a file so the terminal stays clean.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.LogFile == "" {
			cfg.LogFile = defaultTUILogFile
		}
		if cmd.Flags().Changed("http") {
			cfg.HTTPAddr = runHTTPAddr
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		con, cleanup, err := newConsole(cfg, cfg.Record, false, log)
		if err != nil {
			return err
		}
		defer cleanup()
		defer con.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := con.Start(ctx); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.HTTPAddr != "" {
			srv := server.New(con, log)
			g.Go(func() error { return srv.Start(gctx, cfg.HTTPAddr) })
		}
		if isProfileFile(cfg.Profile) {
			g.Go(func() error { return profile.Watch(gctx, cfg.Profile, log, con.SetProfile) })
		}
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, con)
		})
		return g.Wait()
	},
}

func init() {
	runCmd.Flags().StringVar(&runHTTPAddr, "http", "", "Web dashboard listen address; empty disables it (default from config)")
}
