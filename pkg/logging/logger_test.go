// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "triaged",
		Quiet:   true,
	})

	logger.Info("incident routed", "incident_id", "INC-1", "team", "payments-team")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "triaged_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "incident routed") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), `"service":"triaged"`) {
		t.Errorf("log file missing service attribute, got: %s", data)
	}
}

func TestExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "triaged",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Warn("capacity overrun", "team", "core-banking-team")

	// Export happens asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}
	if entries[0].Message != "capacity overrun" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if entries[0].Attrs["team"] != "core-banking-team" {
		t.Errorf("unexpected attrs %v", entries[0].Attrs)
	}
}

func TestDebugFilteredBelowLevel(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Debug("noise")
	logger.Info("still noise")
	time.Sleep(50 * time.Millisecond)

	if n := len(exporter.Entries()); n != 0 {
		t.Errorf("expected no exported entries below level, got %d", n)
	}
}

func TestWithAddsAttributes(t *testing.T) {
	logger := Default()
	child := logger.With("incident_id", "INC-9")
	if child == logger {
		t.Fatal("With should return a new logger")
	}
	if child.Slog() == nil {
		t.Fatal("child logger has no slog backend")
	}
}
