package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(os.Stderr)
	})

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "calendar", "Home")
	Error("shown error", errors.New("boom"), "id", "work")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered lines:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] shown warn calendar=Home") {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] shown error err=boom id=work") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestFormatKVs(t *testing.T) {
	got := formatKVs("title", "Team sync", "n", 3, "dangling")
	want := ` title="Team sync" n=3`
	if got != want {
		t.Errorf("formatKVs() = %q, want %q", got, want)
	}
}
