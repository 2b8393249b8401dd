package main

import (
	"slices"

	"go.uber.org/zap"

	"droneops-console/internal/config"
	"droneops-console/internal/console"
	"droneops-console/internal/profile"
	"droneops-console/internal/recorder"
)

// newConsole builds a console for cfg and records its bus traffic into the
// sinks selected by rec. The cleanup function closes the sinks and must run
// after the console is closed.
func newConsole(cfg config.Config, rec config.Record, printEvents bool, log *zap.Logger) (*console.Console, func(), error) {
	p, err := profile.Load(cfg.Profile)
	if err != nil {
		return nil, nil, err
	}
	con, err := console.New(console.Options{Config: cfg, Profile: p, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	w, cleanup, err := newRecorder(rec, printEvents, log)
	if err != nil {
		return nil, nil, err
	}
	if w != nil {
		recorder.Attach(con.Bus(), w, log)
	}
	return con, cleanup, nil
}

// isProfileFile reports whether name refers to a profile on disk rather than
// a built-in one.
func isProfileFile(name string) bool {
	return name != "" && !slices.Contains(profile.Builtin(), name)
}
