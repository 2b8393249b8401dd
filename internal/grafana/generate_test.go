package grafana

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMissingDatasource(t *testing.T) {
	t.Setenv(DatasourceEnv, "")
	if _, err := Render(t.TempDir(), Options{}); err == nil {
		t.Fatalf("expected error for missing datasource uid")
	}
}

func TestRenderFromEnv(t *testing.T) {
	t.Setenv(DatasourceEnv, "uid1")

	dir := t.TempDir()
	paths, err := Render(dir, Options{Title: `Bushfire "Response"`})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(dir, "recording.json") {
		t.Fatalf("unexpected paths %v", paths)
	}

	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	var dash struct {
		Title  string `json:"title"`
		Panels []struct {
			Datasource struct {
				UID string `json:"uid"`
			} `json:"datasource"`
		} `json:"panels"`
	}
	if err := json.Unmarshal(b, &dash); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}
	if dash.Title != `Bushfire "Response"` {
		t.Fatalf("unexpected title %q", dash.Title)
	}
	if len(dash.Panels) == 0 || dash.Panels[0].Datasource.UID != "uid1" {
		t.Fatalf("greptime uid not rendered")
	}
	if !strings.Contains(string(b), "FROM system_events") || !strings.Contains(string(b), "FROM region_device_counts") {
		t.Fatalf("recorder tables not referenced")
	}
}

func TestRenderExplicitUID(t *testing.T) {
	t.Setenv(DatasourceEnv, "from-env")
	paths, err := Render(t.TempDir(), Options{DatasourceUID: "explicit"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b, _ := os.ReadFile(paths[0])
	if !strings.Contains(string(b), `"uid": "explicit"`) || strings.Contains(string(b), "from-env") {
		t.Fatalf("explicit uid not preferred")
	}
}
