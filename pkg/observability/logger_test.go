package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("org", 5).Info("gate ready")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "gate ready" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["org"] != float64(5) {
		t.Errorf("org = %v", entry["org"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn message should be logged")
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(nil).Info("no error field")
	if strings.Contains(buf.String(), `"error"`) {
		t.Error("nil error should not add a field")
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("debug") != DebugLevel {
		t.Error("ParseLogLevel(debug)")
	}
	if ParseLogLevel("nonsense") != InfoLevel {
		t.Error("unknown level should default to info")
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("handled")
	if !strings.Contains(buf.String(), "req-123") {
		t.Errorf("request id missing from output: %s", buf.String())
	}
}
