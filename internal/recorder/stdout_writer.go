package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"droneops-console/internal/events"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var eventColors = map[events.SystemEventType]string{
	events.Geofence:             colorRed,
	events.ConnectedNetworkType: colorBlue,
	events.DeviceReachability:   colorYellow,
	events.ConnectivityInsight:  colorMagenta,
	events.IncomingWebRTC:       colorGreen,
	events.RegionDeviceCount:    colorCyan,
}

// StdoutWriter prints rows as JSON lines, or as colorized text when color is
// enabled.
type StdoutWriter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewStdoutWriter writes to os.Stdout and colorizes when it is a terminal.
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{out: os.Stdout, color: term.IsTerminal(int(os.Stdout.Fd()))}
}

// NewWriterTo writes to out, colorized if color is set.
func NewWriterTo(out io.Writer, color bool) *StdoutWriter {
	return &StdoutWriter{out: out, color: color}
}

// Write outputs a single row.
func (w *StdoutWriter) Write(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.color {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}

	col, ok := eventColors[row.Event.Type]
	if !ok {
		col = colorGray
	}
	_, err := fmt.Fprintf(w.out, "%s[%s]%s %s%s%s", colorGray, row.RecordedAt.Format(time.RFC3339), colorReset,
		col, row.Event.Type, colorReset)
	if err != nil {
		return err
	}
	if rc, ok := row.Event.RegionCount(); ok {
		fmt.Fprintf(w.out, " devices=%d radius=%.0f", rc.DeviceCount, rc.Radius)
		if rc.Lat != nil && rc.Lon != nil {
			fmt.Fprintf(w.out, " lat=%.5f lon=%.5f", *rc.Lat, *rc.Lon)
		}
	}
	_, err = fmt.Fprintln(w.out)
	return err
}

// WriteBatch outputs multiple rows.
func (w *StdoutWriter) WriteBatch(rows []Row) error { return writeEach(rows, w.Write) }
