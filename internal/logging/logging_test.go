package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	l, err := New("debug", path)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	Component(l, "bus").Debug("hello", zap.Int("n", 1))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"component":"bus"`) || !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestComponentNil(t *testing.T) {
	if Component(nil, "x") == nil {
		t.Fatal("expected no-op logger")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewNop()
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not carried through context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
}
