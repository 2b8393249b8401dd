package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"droneops-console/internal/bus"
	"droneops-console/internal/events"
)

var ts = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func geofenceRow(at time.Time) Row {
	return NewRow(events.SystemEvent{Type: events.Geofence, Timestamp: events.Timestamp(at)}, at)
}

func regionRow(at time.Time, payload string) Row {
	return NewRow(events.SystemEvent{
		Type:      events.RegionDeviceCount,
		Timestamp: events.Timestamp(at),
		Payload:   json.RawMessage(payload),
	}, at)
}

type collectWriter struct {
	rows []Row
	err  error
}

func (c *collectWriter) Write(r Row) error {
	c.rows = append(c.rows, r)
	return c.err
}

func (c *collectWriter) WriteBatch(rows []Row) error { return writeEach(rows, c.Write) }

func TestFileWriterAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	fw, err := NewFileWriter(path)
	require.NoError(t, err)
	rows := []Row{geofenceRow(ts), regionRow(ts.Add(time.Second), `{"device_count":3,"radius":100}`)}
	require.NoError(t, fw.WriteBatch(rows))
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	var got []events.SystemEvent
	n, err := ReplayLogFile(context.Background(), path, func(ev events.SystemEvent) { got = append(got, ev) }, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, events.Geofence, got[0].Type)
	rc, ok := got[1].RegionCount()
	require.True(t, ok)
	assert.Equal(t, 3, rc.DeviceCount)
}

func TestReplayHonoursSpeedAndCancellation(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	require.NoError(t, enc.Encode(geofenceRow(ts)))
	require.NoError(t, enc.Encode(geofenceRow(ts.Add(time.Hour))))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var count int
	n, err := ReplayLog(ctx, &buf, func(events.SystemEvent) { count++ }, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, count)
}

func TestReplayRejectsGarbage(t *testing.T) {
	_, err := ReplayLog(context.Background(), strings.NewReader("{not json"), func(events.SystemEvent) {}, 0)
	assert.Error(t, err)
}

func TestStdoutWriter(t *testing.T) {
	var plain bytes.Buffer
	require.NoError(t, NewWriterTo(&plain, false).Write(geofenceRow(ts)))
	var row Row
	require.NoError(t, json.Unmarshal(plain.Bytes(), &row))
	assert.Equal(t, events.Geofence, row.Event.Type)

	var colored bytes.Buffer
	w := NewWriterTo(&colored, true)
	require.NoError(t, w.Write(regionRow(ts, `{"lat":-37.8,"lon":144.9,"device_count":12,"radius":500}`)))
	out := colored.String()
	assert.Contains(t, out, colorCyan+"region_device_count")
	assert.Contains(t, out, "devices=12 radius=500 lat=-37.80000 lon=144.90000")
}

func TestMultiWriterReachesEveryWriter(t *testing.T) {
	failing := &collectWriter{err: errors.New("disk full")}
	ok := &collectWriter{}
	mw := NewMultiWriter(failing, ok)

	err := mw.Write(geofenceRow(ts))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, ok.rows, 1)

	require.Error(t, mw.WriteBatch([]Row{geofenceRow(ts), geofenceRow(ts)}))
	assert.Len(t, ok.rows, 3)
}

func TestAttachRecordsBusEvents(t *testing.T) {
	b := bus.New(zap.NewNop())
	cw := &collectWriter{}
	tok := Attach(b, cw, nil)

	b.Publish(events.SystemEvent{Type: events.IncomingWebRTC, Timestamp: events.Timestamp(ts)})
	b.Publish(events.SystemEvent{Type: events.Geofence, Timestamp: events.Timestamp(ts)})
	require.True(t, b.Unsubscribe(tok))
	b.Publish(events.SystemEvent{Type: events.Geofence, Timestamp: events.Timestamp(ts)})

	require.Len(t, cw.rows, 2)
	assert.Equal(t, events.IncomingWebRTC, cw.rows[0].Event.Type)
	assert.NotEmpty(t, cw.rows[0].ID)
	assert.NotEqual(t, cw.rows[0].ID, cw.rows[1].ID)
}

type mockGreptimeClient struct {
	tables []*table.Table
}

func (m *mockGreptimeClient) Write(_ context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeWriterRoutesRegionCounts(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeWriter{client: m, log: zap.NewNop()}

	require.NoError(t, w.WriteBatch([]Row{
		geofenceRow(ts),
		regionRow(ts, `{"lat":-37.8,"lon":144.9,"device_count":12,"radius":500}`),
	}))
	require.Len(t, m.tables, 2)

	evRows := m.tables[0].GetRows()
	require.Len(t, evRows.Rows, 2)
	assert.Equal(t, "event_type", evRows.Schema[0].ColumnName)
	assert.Equal(t, "geofence", evRows.Rows[0].Values[0].GetStringValue())
	assert.Equal(t, "region_device_count", evRows.Rows[1].Values[0].GetStringValue())

	rcRows := m.tables[1].GetRows()
	require.Len(t, rcRows.Rows, 1)
	assert.Equal(t, int64(12), rcRows.Rows[0].Values[0].GetI64Value())
	assert.InDelta(t, 500, rcRows.Rows[0].Values[1].GetF64Value(), 1e-9)
	assert.InDelta(t, -37.8, rcRows.Rows[0].Values[2].GetF64Value(), 1e-9)
	assert.True(t, rcRows.Rows[0].Values[4].GetBoolValue())
}

func TestGreptimeWriterSkipsEmptyRegionTable(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeWriter{client: m, log: zap.NewNop()}
	require.NoError(t, w.Write(geofenceRow(ts)))
	require.Len(t, m.tables, 1)
	require.NoError(t, w.WriteBatch(nil))
	assert.Len(t, m.tables, 1)
}
