package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/trendhealth/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.Config
		wantLevel zerolog.Level
	}{
		{
			name:      "debug level",
			cfg:       &config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"},
			wantLevel: zerolog.DebugLevel,
		},
		{
			name:      "info level",
			cfg:       &config.Config{Env: "production", LogLevel: "info", LogFormat: "json"},
			wantLevel: zerolog.InfoLevel,
		},
		{
			name:      "warn level",
			cfg:       &config.Config{Env: "staging", LogLevel: "warn", LogFormat: "json"},
			wantLevel: zerolog.WarnLevel,
		},
		{
			name:      "error level",
			cfg:       &config.Config{Env: "production", LogLevel: "error", LogFormat: "json"},
			wantLevel: zerolog.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(tt.cfg, &buf)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel}, // Default
		{"", zerolog.InfoLevel},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJSONOutputCarriesServiceAndModule(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}

	log := NewWithWriter(cfg, &buf).Module("barcache")
	log.WithFields(map[string]interface{}{
		"symbol": "AAPL",
		"bars":   400,
	}).Info("backfill completed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if entry["service"] != "trendhealth" {
		t.Errorf("Expected service trendhealth, got %v", entry["service"])
	}
	if entry["module"] != "barcache" {
		t.Errorf("Expected module barcache, got %v", entry["module"])
	}
	if entry["symbol"] != "AAPL" {
		t.Errorf("Expected symbol AAPL, got %v", entry["symbol"])
	}
	if entry["bars"] != float64(400) {
		t.Errorf("Expected bars 400, got %v", entry["bars"])
	}
	if entry["message"] != "backfill completed" {
		t.Errorf("Expected message 'backfill completed', got %v", entry["message"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := &Logger{zlog: zerolog.New(&buf)}

	logger.WithError(errors.New("provider timeout")).Error("extension failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if entry["error"] != "provider timeout" {
		t.Errorf("Expected error 'provider timeout', got %v", entry["error"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Env: "test", LogLevel: "info", LogFormat: "console"}

	NewWithWriter(cfg, &buf).Infof("saved %d points", 12)

	if !strings.Contains(buf.String(), "saved 12 points") {
		t.Errorf("Expected console output to contain message, got: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Nop 로거는 패닉 없이 모든 호출을 버림
	log := Nop()
	log.Module("x").WithField("k", "v").Warn("ignored")
}
