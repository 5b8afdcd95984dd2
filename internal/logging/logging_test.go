package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw   string
		want  zerolog.Level
		valid bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.raw)
		if got != tt.want || ok != tt.valid {
			t.Errorf("parseLevel(%q) = %v, %v, want %v, %v", tt.raw, got, ok, tt.want, tt.valid)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogFormat, "")

	var buf bytes.Buffer
	logger := New("netstream-test", Config{Level: "info", Format: FormatJSON, Output: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Str("remote", "127.0.0.1:1").Msg("accepted")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if entry["app"] != "netstream-test" {
		t.Errorf("app = %v, want netstream-test", entry["app"])
	}
	if entry["remote"] != "127.0.0.1:1" {
		t.Errorf("remote = %v", entry["remote"])
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogNoColor, "true")

	var buf bytes.Buffer
	logger := New("netstream-test", Config{Level: "error", Format: FormatConsole, Output: &buf})
	logger.Debug().Msg("visible")

	if !strings.Contains(buf.String(), `"message":"visible"`) {
		t.Errorf("output = %q, want a JSON debug entry", buf.String())
	}
}

func TestNew_Console(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogFormat, "")

	var buf bytes.Buffer
	logger := New("netstream-test", Config{Level: "info", Format: FormatConsole, NoColor: true, Output: &buf})
	logger.Info().Msg("listening")

	out := buf.String()
	if !strings.Contains(out, "listening") || !strings.Contains(out, "app=netstream-test") {
		t.Errorf("output = %q", out)
	}
}
