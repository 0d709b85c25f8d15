package log

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pvestimate.log")
	if err := InitWithFile(false, path); err != nil {
		t.Fatal(err)
	}
	Infow("estimate finished", "site", "golden")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"site":"golden"`) {
		t.Errorf("log file = %q, want JSON entry with site field", data)
	}
}

func TestLogHTTPRequestLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		LogHTTPRequest(HTTPLogEntry{Method: "GET", Path: "/sites", Status: tt.status, Duration: time.Millisecond, Err: errors.New("boom")})
	}

	entries := logs.All()
	if len(entries) != len(tests) {
		t.Fatalf("got %d entries, want %d", len(entries), len(tests))
	}
	for i, tt := range tests {
		if entries[i].Level != tt.want {
			t.Errorf("status %d logged at %v, want %v", tt.status, entries[i].Level, tt.want)
		}
		if entries[i].ContextMap()["path"] != "/sites" {
			t.Errorf("entry %d fields = %v", i, entries[i].ContextMap())
		}
	}
}
