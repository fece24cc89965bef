package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Options{Level: slog.LevelInfo, Format: "text"}, &buf)

	logger.Info("vms created", "exam_id", 12)

	output := buf.String()
	if !strings.Contains(output, "vms created") {
		t.Errorf("expected 'vms created' in output, got: %s", output)
	}
	if !strings.Contains(output, "exam_id=12") {
		t.Errorf("expected 'exam_id=12' in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Options{Level: slog.LevelInfo, Format: "json"}, &buf)

	logger.Info("vms created", "exam_id", 12)

	output := buf.String()
	if !strings.Contains(output, `"msg":"vms created"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"exam_id":12`) {
		t.Errorf("expected JSON exam_id field in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Options{Level: slog.LevelWarn, Format: "text"}, &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewLoggerWithWriter_AddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Options{Level: slog.LevelInfo, Format: "text", AddSource: true}, &buf)

	logger.Info("with source")

	if !strings.Contains(buf.String(), "logging_test.go") {
		t.Errorf("expected source location in output, got: %s", buf.String())
	}
}

func TestNewLoggerWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Options{Level: slog.LevelDebug, Format: "text"}, &buf)
	child := logger.With("component", "creator")

	child.Debug("nothing to schedule", "exam_id", 3)

	output := buf.String()
	if !strings.Contains(output, "component=creator") {
		t.Errorf("expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "exam_id=3") {
		t.Errorf("expected exam_id in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
