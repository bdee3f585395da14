package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTextSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Info("hidden")
	l.Warn("coolant low", "coolant", 12.5)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info record filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "coolant low") || !strings.Contains(out, "coolant=12.5") {
		t.Errorf("Expected warn record with attrs, got %q", out)
	}
}

func TestEventAndFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.log")
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf, File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Event("SCRAM", "SAFETY", "temperature 1012.4")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("decode json record: %v (%q)", err, data)
	}
	if rec["type"] != "SCRAM" || rec["actor"] != "SAFETY" {
		t.Errorf("Unexpected record: %v", rec)
	}
	if !strings.Contains(buf.String(), "type=SCRAM") {
		t.Errorf("Expected the text sink to receive the event too, got %q", buf.String())
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("Expected error for unknown level")
	}
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Errorf("Expected New to reject unknown level")
	}
}

func TestJournalKey(t *testing.T) {
	if got := journalKey("turn.report-1"); got != "TURN_REPORT_1" {
		t.Errorf("Expected TURN_REPORT_1, got %q", got)
	}
}
