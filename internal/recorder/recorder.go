// Package recorder persists the system events seen on the bus and replays
// recordings back into it.
package recorder

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"droneops-console/internal/bus"
	"droneops-console/internal/events"
	"droneops-console/internal/logging"
)

// Row is one recorded system event.
type Row struct {
	ID         string             `json:"id"`
	RecordedAt time.Time          `json:"recorded_at"`
	Event      events.SystemEvent `json:"event"`
}

// NewRow stamps ev with a fresh id and the recording time.
func NewRow(ev events.SystemEvent, at time.Time) Row {
	return Row{ID: uuid.NewString(), RecordedAt: at.UTC(), Event: ev}
}

// EventWriter is implemented by every recording sink.
type EventWriter interface {
	Write(row Row) error
	WriteBatch(rows []Row) error
}

// Attach records every event published on b into w until the returned token
// is unsubscribed. Write failures are logged and do not affect delivery.
func Attach(b *bus.Bus, w EventWriter, log *zap.Logger) bus.Token {
	log = logging.Component(log, "recorder")
	return b.Subscribe(bus.Wildcard, func(ev events.SystemEvent) {
		if err := w.Write(NewRow(ev, time.Now())); err != nil {
			log.Error("record event failed", zap.String("event_type", string(ev.Type)), zap.Error(err))
		}
	})
}

func writeEach(rows []Row, write func(Row) error) error {
	for _, r := range rows {
		if err := write(r); err != nil {
			return err
		}
	}
	return nil
}
