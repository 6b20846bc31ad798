package shared

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name string
		in   time.Duration
		want string
	}{
		{name: "unknown", in: 0, want: "--:--"},
		{name: "seconds", in: 7 * time.Second, want: "0:07"},
		{name: "minutes", in: 3*time.Minute + 25*time.Second, want: "3:25"},
		{name: "hours", in: time.Hour + 2*time.Minute + 3*time.Second, want: "1:02:03"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(512); got != "512 B" {
		t.Errorf("FormatBytes(512) = %v", got)
	}
	if got := FormatBytes(2048); got != "2.0 KiB" {
		t.Errorf("FormatBytes(2048) = %v", got)
	}
	if got := FormatBytes(5 * 1024 * 1024); got != "5.0 MiB" {
		t.Errorf("FormatBytes(5MiB) = %v", got)
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "source", "youtube")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "source=youtube") {
			t.Errorf("expected source field in output, got %q", buf.String())
		}
	})

	t.Run("WithLogger tolerates nil", func(t *testing.T) {
		WithLogger(nil, "k", "v").Info("discarded")
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		if ParseLogLevel("DEBUG") != log.DebugLevel {
			t.Error("expected debug level")
		}
		if ParseLogLevel("nonsense") != log.InfoLevel {
			t.Error("expected info level fallback")
		}
	})

	t.Run("SwitchWriter redirects child loggers", func(t *testing.T) {
		var first, second bytes.Buffer
		sw := NewSwitchWriter(&first)
		child := WithLogger(NewLogger(sw), "source", "spotify")

		child.Info("one")
		if prev := sw.Swap(&second); prev != &first {
			t.Error("expected Swap to return the previous writer")
		}
		child.Info("two")

		if !strings.Contains(first.String(), "one") || strings.Contains(first.String(), "two") {
			t.Errorf("unexpected first output %q", first.String())
		}
		if !strings.Contains(second.String(), "two") {
			t.Errorf("unexpected second output %q", second.String())
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b || len(a) != 36 {
			t.Errorf("unexpected ids %q %q", a, b)
		}
	})
}
