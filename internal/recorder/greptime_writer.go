package recorder

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	"go.uber.org/zap"

	"droneops-console/internal/logging"
)

const (
	defaultGreptimePort = 4001
	writeTimeout        = 5 * time.Second

	SystemEventTable = "system_events"
	RegionCountTable = "region_device_counts"
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeWriter stores system events and region device counts in
// GreptimeDB. Tables are created by the server on first insert.
type GreptimeWriter struct {
	client greptimeClient
	log    *zap.Logger
}

// NewGreptimeWriter connects to the gRPC endpoint host[:port].
func NewGreptimeWriter(endpoint, database string, log *zap.Logger) (*GreptimeWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: bad port", endpoint)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeWriter{client: client, log: logging.Component(log, "greptime")}, nil
}

// Write inserts a single row.
func (w *GreptimeWriter) Write(row Row) error {
	return w.WriteBatch([]Row{row})
}

// WriteBatch inserts rows, routing region device counts to their own table.
func (w *GreptimeWriter) WriteBatch(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	evTbl, err := table.New(SystemEventTable)
	if err != nil {
		return err
	}
	evTbl.AddTagColumn("event_type", types.STRING)
	evTbl.AddFieldColumn("id", types.STRING)
	evTbl.AddFieldColumn("payload", types.STRING)
	evTbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	rcTbl, err := table.New(RegionCountTable)
	if err != nil {
		return err
	}
	rcTbl.AddFieldColumn("device_count", types.INT64)
	rcTbl.AddFieldColumn("radius", types.FLOAT64)
	rcTbl.AddFieldColumn("lat", types.FLOAT64)
	rcTbl.AddFieldColumn("lon", types.FLOAT64)
	rcTbl.AddFieldColumn("located", types.BOOLEAN)
	rcTbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	var counts int
	for _, r := range rows {
		ts := eventTime(r)
		if err := evTbl.AddRow(string(r.Event.Type), r.ID, string(r.Event.Payload), ts); err != nil {
			return fmt.Errorf("build %s row: %w", SystemEventTable, err)
		}
		rc, ok := r.Event.RegionCount()
		if !ok {
			continue
		}
		var lat, lon float64
		located := rc.Lat != nil && rc.Lon != nil
		if located {
			lat, lon = *rc.Lat, *rc.Lon
		}
		if err := rcTbl.AddRow(int64(rc.DeviceCount), rc.Radius, lat, lon, located, ts); err != nil {
			return fmt.Errorf("build %s row: %w", RegionCountTable, err)
		}
		counts++
	}

	tables := []*table.Table{evTbl}
	if counts > 0 {
		tables = append(tables, rcTbl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tables...); err != nil {
		w.log.Error("write failed", zap.Error(err))
		return err
	}
	w.log.Debug("wrote rows", zap.Int("events", len(rows)), zap.Int("region_counts", counts))
	return nil
}

func eventTime(r Row) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, r.Event.Timestamp); err == nil {
		return t
	}
	return r.RecordedAt
}

var _ EventWriter = (*GreptimeWriter)(nil)
