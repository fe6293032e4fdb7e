package dialogs

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usagebar/internal/quota"
	"github.com/zsprackett/usagebar/internal/usage"
)

// UsageDialog shows every quota from the last reading plus the last error.
type UsageDialog struct {
	*tview.TextView
	onClose   func()
	onRefresh func() bool
}

// NewUsageDialog creates the detail dialog. onClose is called on Q or Escape.
// onRefresh is called on R and reports whether a fetch was started; the
// caller redisplays through Reload when new state arrives.
func NewUsageDialog(onClose func(), onRefresh func() bool) *UsageDialog {
	d := &UsageDialog{
		TextView:  tview.NewTextView(),
		onClose:   onClose,
		onRefresh: onRefresh,
	}
	d.SetBorder(true).SetTitle(" Claude Usage ").SetTitleAlign(tview.AlignLeft)
	d.SetDynamicColors(true)
	d.SetBackgroundColor(tcell.ColorDefault)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			onClose()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			onRefresh()
			return nil
		}
		return event
	})
	return d
}

// Reload redisplays st.
func (d *UsageDialog) Reload(st usage.State, threshold float64) {
	d.SetText(BuildUsageText(st, threshold, time.Now()))
}

// BuildUsageText renders the dialog body.
func BuildUsageText(st usage.State, threshold float64, now time.Time) string {
	var sb strings.Builder
	snap := st.Snapshot

	if !snap.HasData {
		sb.WriteString("\n  [yellow]No usage data yet.[-]\n")
		if st.InFlight {
			sb.WriteString("\n  Fetching usage from claude...\n")
		}
	} else {
		sb.WriteString("\n")
		writeHeadline(&sb, "Current Session", snap.SessionFraction, threshold)
		writeHeadline(&sb, "Current Week", snap.WeeklyFraction, threshold)

		if len(snap.Quotas) > 0 {
			sb.WriteString("  [yellow]All Quotas[-]\n")
			for _, q := range snap.Quotas {
				used := (100 - q.PercentRemaining) / 100
				sb.WriteString(fmt.Sprintf("  %-24s %s  %s\n",
					QuotaLabel(q), progressBar(used, 20), formatUtil(used)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("  [dim]Updated %s[-]\n", humanize.RelTime(snap.CapturedAt, now, "ago", "from now")))
	}

	if e := st.LastError; e != nil {
		sb.WriteString(fmt.Sprintf("\n  [red]%s[-]\n", tview.Escape(e.Message)))
		sb.WriteString(fmt.Sprintf("  [dim]%s, %s[-]\n", e.Kind, humanize.RelTime(e.At, now, "ago", "from now")))
	}

	if st.InFlight {
		sb.WriteString("\n  [yellow]Refreshing...[-]")
	} else {
		sb.WriteString("\n  [green]R[-] refresh")
	}
	sb.WriteString("  [green]Q/Esc[-] close")
	return sb.String()
}

func writeHeadline(sb *strings.Builder, title string, frac, threshold float64) {
	sb.WriteString(fmt.Sprintf("  [yellow]%s[-]\n", title))
	sb.WriteString(fmt.Sprintf("  %s  %s", progressBar(frac, 30), formatUtil(frac)))
	if frac > threshold {
		sb.WriteString("  [red]ALERT[-]")
	}
	sb.WriteString("\n\n")
}

// QuotaLabel names a quota for display.
func QuotaLabel(q quota.Quota) string {
	switch q.Kind {
	case quota.KindSession:
		return "Session"
	case quota.KindWeekly:
		return "Week (all models)"
	default:
		if q.Model == "" {
			return "Model"
		}
		return "Week (" + strings.ToUpper(q.Model[:1]) + q.Model[1:] + ")"
	}
}

// formatUtil formats a 0-1 used fraction as a colored percentage string.
func formatUtil(util float64) string {
	color := "green"
	if util >= 0.8 {
		color = "red"
	} else if util >= 0.6 {
		color = "yellow"
	}
	return fmt.Sprintf("[%s]%.0f%% used[-]", color, util*100)
}

// progressBar renders a simple text progress bar for a fraction in [0,1].
func progressBar(util float64, width int) string {
	if util < 0 {
		util = 0
	}
	if util > 1 {
		util = 1
	}
	filled := int(util * float64(width))
	empty := width - filled

	color := "green"
	if util >= 0.8 {
		color = "red"
	} else if util >= 0.6 {
		color = "yellow"
	}

	return fmt.Sprintf("[%s][%s%s][-]", color, strings.Repeat("█", filled), strings.Repeat("░", empty))
}
