package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupEmitsPipelineEventFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDebug, Output: buf})

	logger.Info().
		Str("batch_id", "b-42f0").
		Str("acronym", "NASA").
		Str("api_key", "AIzaSyEx...").
		Int("attempt", 2).
		Msg("Item enriched")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not a JSON event: %v\n%s", err, buf.String())
	}

	if event["batch_id"] != "b-42f0" {
		t.Errorf("batch_id = %v", event["batch_id"])
	}
	if event["acronym"] != "NASA" {
		t.Errorf("acronym = %v", event["acronym"])
	}
	if event["api_key"] != "AIzaSyEx..." {
		t.Errorf("api_key = %v, want the 8-character hint", event["api_key"])
	}
	if event["message"] != "Item enriched" {
		t.Errorf("message = %v", event["message"])
	}
	if _, ok := event["time"]; !ok {
		t.Error("event carries no timestamp")
	}
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelWarn, Output: buf})

	logger.Debug().Str("acronym", "SQL").Msg("Credential acquired")
	logger.Info().Int("done", 25).Msg("Batch progress")
	logger.Warn().Str("api_key", "AIzaSyEx...").Msg("Credential quota exceeded")
	logger.Error().Msg("Connect to redis failed")

	out := buf.String()
	if strings.Contains(out, "Credential acquired") || strings.Contains(out, "Batch progress") {
		t.Errorf("events below warn leaked through:\n%s", out)
	}
	if !strings.Contains(out, "Credential quota exceeded") {
		t.Error("warn event missing")
	}
	if !strings.Contains(out, "Connect to redis failed") {
		t.Error("error event missing")
	}
}

func TestSetupConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("acronym", "NASA").Msg("Item enriched")

	out := strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output is still a JSON line: %q", out)
	}
	if !strings.Contains(out, "NASA") {
		t.Errorf("field missing from console output: %q", out)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default output should be JSON, not console")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
