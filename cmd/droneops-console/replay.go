package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"droneops-console/internal/config"
	"droneops-console/internal/recorder"
	"droneops-console/internal/server"
)

var (
	replayInput       string
	replaySpeed       float64
	replayServe       string
	replayPrintEvents bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded system event log",
	Long: "replay feeds recorded system events into an offline console and prints the resulting dashboard " +
		"state, or keeps serving it with --serve.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Replayed events are never recorded again.
		con, cleanup, err := newConsole(cfg, config.Record{}, replayPrintEvents, log)
		if err != nil {
			return err
		}
		defer cleanup()
		defer con.Close()
		con.Attach()

		srvErr := make(chan error, 1)
		if replayServe != "" {
			srv := server.New(con, log)
			go func() { srvErr <- srv.Start(ctx, replayServe) }()
		}

		n, err := recorder.ReplayLogFile(ctx, replayInput, con.Bus().Publish, replaySpeed)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("replay finished", zap.Int("events", n))

		if replayServe != "" {
			return <-srvErr
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(con.Snapshot())
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a recorded event log (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier; 0 replays without delay")
	replayCmd.Flags().StringVar(&replayServe, "serve", "", "Serve the replayed console on this address until interrupted")
	replayCmd.Flags().BoolVar(&replayPrintEvents, "print-events", false, "Print replayed events to STDOUT")
	replayCmd.MarkFlagRequired("input")
}
