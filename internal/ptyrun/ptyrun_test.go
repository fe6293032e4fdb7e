package ptyrun_test

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zsprackett/usagebar/internal/ptyrun"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(t *testing.T) *ptyrun.Runner {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	r := ptyrun.New(discardLogger())
	r.PollInterval = 20 * time.Millisecond
	r.DrainWait = 50 * time.Millisecond
	r.Timeout = 5 * time.Second
	r.StallTimeout = 2 * time.Second
	return r
}

func containsMarker(b []byte) bool {
	return strings.Contains(string(b), "% left")
}

var pidRe = regexp.MustCompile(`pid=(\d+)`)

func TestRun_CompletesOnMarkerAndKillsChild(t *testing.T) {
	r := newRunner(t)
	r.Complete = containsMarker

	start := time.Now()
	out, err := r.Run("/bin/sh", []string{"-c", `printf 'pid=%s\nCurrent session\n 42%% left\n' "$$"; sleep 30`}, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("expected early return on marker, took %s", time.Since(start))
	}
	if !strings.Contains(string(out), "42% left") {
		t.Errorf("output missing marker: %q", out)
	}

	m := pidRe.FindSubmatch(out)
	if m == nil {
		t.Fatalf("pid not found in output %q", out)
	}
	pid, _ := strconv.Atoi(string(m[1]))
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("child %d still exists after Run returned", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRun_ExitWithoutMarkerIsNotAnError(t *testing.T) {
	r := newRunner(t)
	r.Complete = containsMarker

	out, err := r.Run("/bin/sh", []string{"-c", "printf hello"}, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(out), "hello") {
		t.Errorf("got %q", out)
	}
}

func TestRun_StallIsTimeout(t *testing.T) {
	r := newRunner(t)
	r.Complete = containsMarker
	r.StallTimeout = 200 * time.Millisecond

	_, err := r.Run("/bin/sh", []string{"-c", "printf 'Do you trust this folder? '; sleep 30"}, t.TempDir())
	var te *ptyrun.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !te.Stalled {
		t.Error("expected Stalled")
	}
	if !strings.Contains(string(te.Output), "trust this folder") {
		t.Errorf("partial output not kept: %q", te.Output)
	}
}

func TestRun_OverallTimeout(t *testing.T) {
	r := newRunner(t)
	r.Complete = containsMarker
	r.Timeout = 400 * time.Millisecond

	start := time.Now()
	_, err := r.Run("/bin/sh", []string{"-c", "while true; do printf .; sleep 0.05; done"}, t.TempDir())
	var te *ptyrun.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Stalled {
		t.Error("expected a budget timeout, not a stall")
	}
	if len(te.Output) == 0 {
		t.Error("expected partial output")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestRun_SilentChildIsNotStalled(t *testing.T) {
	r := newRunner(t)
	r.Timeout = 300 * time.Millisecond
	r.StallTimeout = 50 * time.Millisecond

	_, err := r.Run("/bin/sh", []string{"-c", "sleep 30"}, t.TempDir())
	var te *ptyrun.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Stalled {
		t.Error("stall requires prior output")
	}
}

func TestRun_WorkingDirectoryAndTerm(t *testing.T) {
	r := newRunner(t)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("TERM", "dumb")

	out, err := r.Run("/bin/sh", []string{"-c", `printf '%s|%s' "$(pwd -P)" "$TERM"`}, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(out), dir+"|"+ptyrun.Term) {
		t.Errorf("got %q, want dir %q and TERM %q", out, dir, ptyrun.Term)
	}
}

func TestRun_ChildSeesTerminal(t *testing.T) {
	r := newRunner(t)
	out, err := r.Run("/bin/sh", []string{"-c", "[ -t 0 ] && [ -t 1 ] && printf tty-ok"}, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(out), "tty-ok") {
		t.Errorf("child not attached to a terminal: %q", out)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	r := newRunner(t)
	_, err := r.Run(filepath.Join(t.TempDir(), "missing"), nil, t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	var te *ptyrun.TimeoutError
	if errors.As(err, &te) {
		t.Error("start failure must not look like a timeout")
	}
	if errors.Is(err, ptyrun.ErrPTYAllocation) {
		t.Error("start failure must not look like a pty failure")
	}
}

func TestTimeoutError_Message(t *testing.T) {
	err := &ptyrun.TimeoutError{Stalled: true, Elapsed: 12 * time.Second}
	if !strings.Contains(err.Error(), "waiting for input") {
		t.Errorf("got %q", err.Error())
	}
}
