//go:build linux

package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixdeck/internal/shared"
	tu "github.com/desertthunder/mixdeck/internal/testing"
)

// alive reports whether pid is running. Zombies count as dead.
func alive(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	// The state follows the parenthesized command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z" && fields[0] != "X"
}

func TestExtractCancellationKillsChildren(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	script := tu.WriteScript(t, dir, "yt-dlp", "sleep 30 &\necho $! > '"+pidFile+"'\necho 'download:1/100'\nwait\n")
	e := NewExtractor(script, shared.DiscardLogger())
	e.TempDir = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Extract(ctx, testRequest(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= waitDelay {
		t.Errorf("expected extraction to stop before the wait delay, took %s", elapsed)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(tu.MustReadFile(t, pidFile)))
	if err != nil {
		t.Fatalf("failed to parse child pid: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for alive(pid) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if alive(pid) {
		t.Errorf("expected child process %d to be killed", pid)
	}
}
