package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/usagebar/internal/usage"
)

func TestHeaderTextWithData(t *testing.T) {
	now := time.Now()
	st := usage.State{
		Started: true,
		Snapshot: usage.Snapshot{
			HasData:         true,
			SessionFraction: 0.27,
			WeeklyFraction:  0.12,
			CapturedAt:      now.Add(-2 * time.Minute),
		},
	}
	text := HeaderText(st, 0.9, false, now)
	for _, want := range []string{"session 27%", "week 12%", "2 minutes ago"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
}

func TestHeaderTextNotStarted(t *testing.T) {
	text := HeaderText(usage.State{}, 0.9, false, time.Now())
	if !strings.Contains(text, "choose a working folder") {
		t.Errorf("unexpected header %q", text)
	}
}

func TestFooterTextHidesRefreshWhileFetching(t *testing.T) {
	if !strings.Contains(FooterText(usage.State{Started: true}), "refresh") {
		t.Error("refresh key should be shown when idle")
	}
	if strings.Contains(FooterText(usage.State{Started: true, InFlight: true}), "refresh") {
		t.Error("refresh key should be hidden while fetching")
	}
	if strings.Contains(FooterText(usage.State{}), "refresh") {
		t.Error("refresh key should be hidden before setup")
	}
}

func TestBar(t *testing.T) {
	if got := bar(0.5, 10); got != "█████░░░░░" {
		t.Errorf("bar(0.5) = %q", got)
	}
	if got := bar(2, 4); got != "████" {
		t.Errorf("bar(2) = %q", got)
	}
}
