package tui

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{65 * time.Second, "01:05"},
		{-time.Second, "00:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestBuildProgressBar(t *testing.T) {
	bar := buildProgressBar(30*time.Second, 60*time.Second, 10)
	if strings.Count(bar, "█") != 5 || strings.Count(bar, "░") != 5 {
		t.Errorf("half-way bar = %q", bar)
	}

	if bar := buildProgressBar(10*time.Second, 0, 8); bar != strings.Repeat("-", 8) {
		t.Errorf("zero-duration bar = %q", bar)
	}

	// Position past the end clamps rather than overflowing the width.
	bar = buildProgressBar(90*time.Second, 60*time.Second, 10)
	if strings.Count(bar, "█") != 10 || strings.Count(bar, "░") != 0 {
		t.Errorf("overrun bar = %q", bar)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate("a very long song title indeed", 10)
	if !strings.HasSuffix(got, "...") || len(got) > 10 {
		t.Errorf("truncate = %q", got)
	}
}
