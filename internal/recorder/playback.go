package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"droneops-console/internal/events"
)

// ReplayLog reads recorded rows from r and passes each event to publish,
// spacing them by their original recording gaps divided by speed. A speed
// <= 0 replays without delay.
func ReplayLog(ctx context.Context, r io.Reader, publish func(events.SystemEvent), speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode row %d: %w", n+1, err)
		}
		if !prev.IsZero() && speed > 0 {
			if diff := time.Duration(float64(row.RecordedAt.Sub(prev)) / speed); diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		publish(row.Event)
		n++
		prev = row.RecordedAt
	}
}

// ReplayLogFile opens path and replays its rows.
func ReplayLogFile(ctx context.Context, path string, publish func(events.SystemEvent), speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, publish, speed)
}
