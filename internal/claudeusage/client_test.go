package claudeusage_test

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zsprackett/usagebar/internal/claudeusage"
	"github.com/zsprackett/usagebar/internal/ptyrun"
	"github.com/zsprackett/usagebar/internal/quota"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fastRunner() *ptyrun.Runner {
	r := ptyrun.New(discardLogger())
	r.PollInterval = 20 * time.Millisecond
	r.DrainWait = 50 * time.Millisecond
	r.Timeout = 5 * time.Second
	r.StallTimeout = 300 * time.Millisecond
	return r
}

func TestFindBinaryIn_OrderNamesThenDirs(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeScript(t, second, "claude", "")
	writeScript(t, first, "claude-bun", "")

	got, err := claudeusage.FindBinaryIn(claudeusage.BinaryNames, []string{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(second, "claude"); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestFindBinaryIn_SkipsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "claude"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "claude-bun"), 0755)

	_, err := claudeusage.FindBinaryIn(claudeusage.BinaryNames, []string{dir})
	if !errors.Is(err, claudeusage.ErrBinaryNotFound) {
		t.Errorf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestSearchDirs_UsesHome(t *testing.T) {
	dirs := claudeusage.SearchDirs("/home/u")
	if dirs[0] != "/home/u/.local/bin" {
		t.Errorf("got %q", dirs[0])
	}
	if len(dirs) != 6 {
		t.Errorf("expected 6 dirs, got %d", len(dirs))
	}
}

func TestHasCompletionMarker(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"12% used", true},
		{"40% left", true},
		{"12%used", false},
		{"Loading usage…", false},
	}
	for _, tc := range cases {
		if got := claudeusage.HasCompletionMarker(tc.input); got != tc.want {
			t.Errorf("HasCompletionMarker(%q): got %v want %v", tc.input, got, tc.want)
		}
	}
}

func TestFetch_ParsesScreen(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	bin := writeScript(t, t.TempDir(), "claude", `[ "$1" = "/usage" ] || exit 3
printf '\033[?25l\033[1mCurrent session\033[0m\r\n\033[3C73%% left\r\n'
printf 'Current week (all models)\r\n12%% used\r\n'
sleep 30
`)
	c := claudeusage.NewClientWithFinder(fastRunner(), func() (string, error) { return bin, nil }, discardLogger())

	rep, err := c.Fetch(t.TempDir())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rep.Quotas) != 2 {
		t.Fatalf("expected 2 quotas, got %+v\nclean: %q", rep.Quotas, rep.Clean)
	}
	if rep.Quotas[0] != (quota.Quota{Kind: quota.KindSession, PercentRemaining: 73}) {
		t.Errorf("session: %+v", rep.Quotas[0])
	}
	if rep.Quotas[1] != (quota.Quota{Kind: quota.KindWeekly, PercentRemaining: 88}) {
		t.Errorf("weekly: %+v", rep.Quotas[1])
	}
	if len(rep.Raw) == 0 {
		t.Error("expected raw output")
	}
}

func TestFetch_ExitWithoutMarkerIsParseError(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	bin := writeScript(t, t.TempDir(), "claude", "printf 'Welcome to Claude Code'\n")
	c := claudeusage.NewClientWithFinder(fastRunner(), func() (string, error) { return bin, nil }, discardLogger())

	_, err := c.Fetch(t.TempDir())
	var pe *claudeusage.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if len(pe.Output) == 0 {
		t.Error("expected captured output on ParseError")
	}
}

func TestFetch_BinaryNotFound(t *testing.T) {
	c := claudeusage.NewClientWithFinder(fastRunner(), func() (string, error) {
		return "", claudeusage.ErrBinaryNotFound
	}, discardLogger())
	_, err := c.Fetch(t.TempDir())
	if !errors.Is(err, claudeusage.ErrBinaryNotFound) {
		t.Errorf("expected ErrBinaryNotFound, got %v", err)
	}
}
