package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestTail(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero reads nothing", maxLines: 0, expected: nil},
		{name: "partial", maxLines: 5, expected: expectedAll[5:]},
		{name: "exactly all", maxLines: 10, expected: expectedAll},
		{name: "more than exists", maxLines: 20, expected: expectedAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tail(logPath, tt.maxLines, "")
			if err != nil {
				t.Fatalf("Tail() error = %v", err)
			}
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Tail() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTail_MissingFile(t *testing.T) {
	lines, err := Tail(filepath.Join(t.TempDir(), "absent.log"), 10, "")
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if lines != nil {
		t.Fatalf("Tail() = %v, want nil", lines)
	}
}

func TestTail_FiltersByLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	content := strings.Join([]string{
		"2026-01-02T10:00:00Z DBG catalog restored",
		"2026-01-02T10:00:01Z INF catalog replaced",
		"2026-01-02T10:00:02Z WRN catalog kept in memory only",
		"2026-01-02T10:00:03Z ERR push failed",
	}, "\n")
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	got, err := Tail(logPath, 10, "warn")
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if len(got) != 2 || !strings.Contains(got[0], "WRN") || !strings.Contains(got[1], "ERR") {
		t.Fatalf("Tail() = %v, want WRN and ERR lines", got)
	}

	if _, err := Tail(logPath, 10, "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestInit_WritesToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "nested", FileName)
	closeFn, err := Init(Options{Path: path, Level: "debug"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	log.Warn().Str("key", "catalog").Msg("persist failed")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines, err := Tail(path, 10, "warn")
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "persist failed") || !strings.Contains(lines[0], "key=catalog") {
		t.Fatalf("log lines = %v", lines)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	if err != nil || lvl != zerolog.InfoLevel {
		t.Fatalf("ParseLevel(\"\") = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
