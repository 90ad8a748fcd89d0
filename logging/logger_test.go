package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewFromConfigJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "revmgmt", Module: "test", Level: "info", Output: &buf})

	l.Info("computed", "leg_id", "LH400")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if rec["service"] != "revmgmt" || rec["module"] != "test" || rec["leg_id"] != "LH400" {
		t.Errorf("unexpected record: %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("time key should be renamed to timestamp: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "revmgmt", Level: "info", Output: &buf})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level: %s", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug should be emitted after SetLevel: %s", buf.String())
	}
	if Level().String() != "DEBUG" {
		t.Errorf("Level() = %v", Level())
	}
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "revmgmt", Level: "info", Output: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.InfoContext(ctx, "traced")

	out := buf.String()
	if !strings.Contains(out, traceID.String()) || !strings.Contains(out, spanID.String()) {
		t.Errorf("trace ids missing: %s", out)
	}
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "app.log")
	l := NewFromConfig(Config{Service: "revmgmt", Level: "info", File: file, MaxSize: 1, Output: &buf})

	l.Info("both")
	if !strings.Contains(buf.String(), "both") {
		t.Errorf("console output missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN").String() != "WARN" || ParseLevel("bogus").String() != "INFO" {
		t.Errorf("unexpected level parsing")
	}
}
