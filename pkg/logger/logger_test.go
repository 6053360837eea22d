package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInfoJ_WritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() { base = build(zapcore.Lock(os.Stderr)) }()

	InfoJ("ste_keystore", map[string]any{"op": "persist", "result": "ok", "latency_ms": 3})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if m["msg"] != "ste_keystore" || m["op"] != "persist" || m["result"] != "ok" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["level"] != "info" {
		t.Fatalf("level=%v", m["level"])
	}
}

func TestSetLevel_FiltersBelow(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() { base = build(zapcore.Lock(os.Stderr)) }()
	if err := SetLevel("error"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	defer func() { _ = SetLevel("info") }()

	Info("dropped")
	ErrorJ("kept", nil)
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	if err := SetLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
