package main

import (
	"go.uber.org/zap"

	"droneops-console/internal/config"
	"droneops-console/internal/recorder"
)

// newRecorder builds the event sinks selected by cfg and the print flag.
// It returns a nil writer when nothing is configured, plus a cleanup function
// that closes any files.
func newRecorder(cfg config.Record, printEvents bool, log *zap.Logger) (recorder.EventWriter, func(), error) {
	cleanup := func() {}
	var ws []recorder.EventWriter

	if printEvents {
		ws = append(ws, recorder.NewStdoutWriter())
	}
	if cfg.GreptimeEndpoint != "" {
		gw, err := recorder.NewGreptimeWriter(cfg.GreptimeEndpoint, cfg.GreptimeDatabase, log)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, gw)
	}
	if cfg.File != "" {
		fw, err := recorder.NewFileWriter(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, fw)
		cleanup = func() { fw.Close() }
	}

	switch len(ws) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return ws[0], cleanup, nil
	default:
		return recorder.NewMultiWriter(ws...), cleanup, nil
	}
}
