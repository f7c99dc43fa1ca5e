package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log message to appear in CLI output")
	}

	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in CLI output")
	}
}

func TestCLILevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at INFO level")
	}

	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear at INFO level")
	}
}

func TestJSONFormatIncludesError(t *testing.T) {
	var buf bytes.Buffer

	Init(FormatJSON, LevelDebug, &buf)
	Error("dns", errors.New("disk full"), "pass %s failed", "abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "pass abc failed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["subsystem"] != "dns" {
		t.Errorf("subsystem = %v", record["subsystem"])
	}
	if record["error"] != "disk full" {
		t.Errorf("error = %v", record["error"])
	}
}

func TestJournalFormat(t *testing.T) {
	origAvailable, origSend := journalAvailable, journalSend
	defer func() { journalAvailable, journalSend = origAvailable, origSend }()

	type sent struct {
		msg  string
		prio journal.Priority
		vars map[string]string
	}
	var got []sent
	journalAvailable = func() bool { return true }
	journalSend = func(msg string, prio journal.Priority, vars map[string]string) error {
		got = append(got, sent{msg, prio, vars})
		return nil
	}

	var fallback bytes.Buffer
	Init(FormatJournal, LevelInfo, &fallback)

	Debug("groups", "filtered")
	Warn("groups", "removed %d entries", 2)

	if fallback.Len() != 0 {
		t.Errorf("expected no fallback output, got %q", fallback.String())
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(got))
	}
	if got[0].msg != "removed 2 entries" {
		t.Errorf("msg = %q", got[0].msg)
	}
	if got[0].prio != journal.PriWarning {
		t.Errorf("priority = %v, want warning", got[0].prio)
	}
	if got[0].vars["SUBSYSTEM"] != "groups" {
		t.Errorf("SUBSYSTEM = %q", got[0].vars["SUBSYSTEM"])
	}
}

func TestJournalFallsBackToText(t *testing.T) {
	origAvailable := journalAvailable
	defer func() { journalAvailable = origAvailable }()
	journalAvailable = func() bool { return false }

	var buf bytes.Buffer
	Init(FormatJournal, LevelInfo, &buf)
	Info("timezone", "no journal here")

	if !strings.Contains(buf.String(), "no journal here") {
		t.Errorf("expected text fallback output, got %q", buf.String())
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := map[string]string{
		"subsystem": "SUBSYSTEM",
		"pass.id":   "PASS_ID",
		"_private":  "PRIVATE",
		"-":         "FIELD",
	}
	for in, want := range tests {
		if got := journalFieldName(in); got != want {
			t.Errorf("journalFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}
