// Package grafana renders a Grafana dashboard over the GreptimeDB tables the
// event recorder writes.
package grafana

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"droneops-console/internal/recorder"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// DatasourceEnv names the environment variable consulted when no datasource
// UID is given.
const DatasourceEnv = "GREPTIMEDB_DATASOURCE_UID"

// Options selects what the dashboard queries.
type Options struct {
	Title         string
	DatasourceUID string
}

type data struct {
	Title         string
	DatasourceUID string
	EventsTable   string
	RegionTable   string
}

// Render writes every dashboard to outDir and returns the written paths.
func Render(outDir string, opts Options) ([]string, error) {
	uid := opts.DatasourceUID
	if uid == "" {
		uid = os.Getenv(DatasourceEnv)
	}
	if uid == "" {
		return nil, errors.New("datasource uid required (set " + DatasourceEnv + ")")
	}
	title := opts.Title
	if title == "" {
		title = "DroneOps console events"
	}
	d := data{
		Title:         title,
		DatasourceUID: uid,
		EventsTable:   recorder.SystemEventTable,
		RegionTable:   recorder.RegionCountTable,
	}

	funcs := template.FuncMap{
		"json": func(s string) (string, error) {
			b, err := json.Marshal(s)
			return string(b), err
		},
	}
	t, err := template.New("dashboards").Funcs(funcs).ParseFS(templates, "templates/*.json.tmpl")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, tpl := range t.Templates() {
		if !strings.HasSuffix(tpl.Name(), ".tmpl") {
			continue
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(tpl.Name(), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return written, err
		}
		if err := tpl.Execute(f, d); err != nil {
			f.Close()
			return written, fmt.Errorf("render %s: %w", tpl.Name(), err)
		}
		if err := f.Close(); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
