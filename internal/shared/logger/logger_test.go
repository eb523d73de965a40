package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"slowdrain/internal/shared/types"
)

func TestInitWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "info", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}

	Info().Str("addr", "127.0.0.1:8080").
		Uint64("total", 4096).
		Int64("expected", -1).
		Dur("elapsed", 1500*time.Millisecond).
		Msg("done")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected a single JSON log line, but got %q: %v", buf.String(), err)
	}
	if entry["message"] != "done" {
		t.Errorf("Expected message 'done', but got '%v'", entry["message"])
	}
	if entry["addr"] != "127.0.0.1:8080" {
		t.Errorf("Expected addr field, but got '%v'", entry["addr"])
	}
	if entry["total"] != float64(4096) {
		t.Errorf("Expected total 4096, but got '%v'", entry["total"])
	}
	if entry["expected"] != float64(-1) {
		t.Errorf("Expected expected -1, but got '%v'", entry["expected"])
	}
	// zerolog renders durations in milliseconds by default.
	if entry["elapsed"] != float64(1500) {
		t.Errorf("Expected elapsed 1500, but got '%v'", entry["elapsed"])
	}
}

func TestInitWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "chatty", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}
	Debug().Msg("hidden")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug output to be filtered, but got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("Expected warn output, but got %q", out)
	}
}

func TestInitWithWriter_RejectsUnknownFormat(t *testing.T) {
	if err := InitWithWriter(types.LogConf{Level: "info", Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("Expected an error for format 'xml', but got nil")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "debug", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}
	buf.Reset()

	l := WithComponent("receiver")
	l.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"component":"receiver"`) {
		t.Errorf("Expected component field, but got %q", buf.String())
	}
}
