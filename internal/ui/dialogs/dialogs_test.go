package dialogs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/usagebar/internal/quota"
	"github.com/zsprackett/usagebar/internal/ui/dialogs"
	"github.com/zsprackett/usagebar/internal/usage"
)

func TestReadableLines(t *testing.T) {
	raw := "\x1b[2J\x1b[H\x1b[1mCurrent session\x1b[0m\r\n" +
		"  \x1b[3C73% left\r\n" +
		"────────────\r\n" +
		"Resets 5pm (America/Los_Angeles)\r\n"
	got := dialogs.ReadableLines(raw)
	want := []string{"Current session", "Resets 5pm (America/Los_Angeles)"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadableLines_Empty(t *testing.T) {
	if got := dialogs.ReadableLines(""); len(got) != 0 {
		t.Errorf("expected nothing, got %q", got)
	}
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	got, err := dialogs.ValidateDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("got %q, want %q", got, dir)
	}

	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)
	if _, err := dialogs.ValidateDir(file); err == nil {
		t.Error("expected error for a file")
	}
	if _, err := dialogs.ValidateDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing path")
	}
	if _, err := dialogs.ValidateDir("   "); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestExpandDir_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := dialogs.ExpandDir("~/projects")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "projects") {
		t.Errorf("got %q", got)
	}
}

func TestQuotaLabel(t *testing.T) {
	tests := []struct {
		q    quota.Quota
		want string
	}{
		{quota.Quota{Kind: quota.KindSession}, "Session"},
		{quota.Quota{Kind: quota.KindWeekly}, "Week (all models)"},
		{quota.Quota{Kind: quota.KindModel, Model: "opus"}, "Week (Opus)"},
		{quota.Quota{Kind: quota.KindModel}, "Model"},
	}
	for _, tt := range tests {
		if got := dialogs.QuotaLabel(tt.q); got != tt.want {
			t.Errorf("QuotaLabel(%+v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestBuildUsageText(t *testing.T) {
	now := time.Now()
	st := usage.State{
		Started: true,
		Snapshot: usage.Snapshot{
			HasData:         true,
			SessionFraction: 0.27,
			WeeklyFraction:  0.95,
			Quotas: []quota.Quota{
				{Kind: quota.KindSession, PercentRemaining: 73},
				{Kind: quota.KindWeekly, PercentRemaining: 5},
			},
			CapturedAt: now.Add(-3 * time.Minute),
		},
		LastError: &usage.Failure{Kind: usage.KindTimeout, Message: "Claude timed out (possibly waiting for input)", At: now},
	}
	text := dialogs.BuildUsageText(st, 0.9, now)
	for _, want := range []string{"27% used", "95% used", "ALERT", "3 minutes ago", "timed out", "R[-] refresh"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestBuildUsageText_NoDataInFlight(t *testing.T) {
	text := dialogs.BuildUsageText(usage.State{Started: true, InFlight: true}, 0.9, time.Now())
	if !strings.Contains(text, "No usage data yet") || !strings.Contains(text, "Refreshing...") {
		t.Errorf("unexpected text:\n%s", text)
	}
	if strings.Contains(text, "R[-] refresh") {
		t.Error("refresh key should be hidden while fetching")
	}
}
