package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usagebar/internal/ui/dialogs"
	"github.com/zsprackett/usagebar/internal/usage"
)

// Home is the main screen: an indicator header, the headline quotas and a
// panel with the last error or captured output.
type Home struct {
	*tview.Flex
	app     *tview.Application
	table   *tview.Table
	preview *tview.TextView
	header  *tview.TextView
	footer  *tview.TextView

	threshold float64
	state     usage.State
	flash     bool

	onRefresh func()
	onDetails func()
	onChange  func()
	onDebug   func()
	onQuit    func()
}

func NewHome(app *tview.Application, threshold float64) *Home {
	h := &Home{app: app, threshold: threshold}

	h.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.header.SetBackgroundColor(ColorBackgroundPanel)

	h.table = tview.NewTable().
		SetSelectable(true, false).
		SetSelectedStyle(tcell.StyleDefault.
			Background(ColorSelected).
			Foreground(ColorSelectedText))
	h.table.SetBackgroundColor(ColorBackground)

	h.preview = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	h.preview.SetBackgroundColor(ColorBackground)

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)

	separator := tview.NewBox().SetBackgroundColor(ColorBorder)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(h.table, 0, 45, true).
		AddItem(separator, 1, 0, false).
		AddItem(h.preview, 0, 55, false)

	h.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.header, 1, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(h.footer, 1, 0, false)

	h.setupInput()
	h.render()
	return h
}

func (h *Home) SetCallbacks(onRefresh, onDetails, onChange, onDebug, onQuit func()) {
	h.onRefresh = onRefresh
	h.onDetails = onDetails
	h.onChange = onChange
	h.onDebug = onDebug
	h.onQuit = onQuit
}

// Update replaces the displayed state. Call on the UI goroutine.
func (h *Home) Update(st usage.State) {
	h.state = st
	h.render()
}

// Tick advances the alert flash and the relative timestamps.
func (h *Home) Tick() {
	h.flash = !h.flash
	h.render()
}

func (h *Home) render() {
	h.header.SetText(HeaderText(h.state, h.threshold, h.flash, time.Now()))
	h.footer.SetText(FooterText(h.state))
	h.renderTable()
	h.renderPreview()
}

func (h *Home) renderTable() {
	h.table.Clear()
	snap := h.state.Snapshot
	if !snap.HasData {
		h.table.SetCell(0, 0, tview.NewTableCell(" No usage data yet").SetTextColor(ColorTextMuted))
		return
	}
	rows := []struct {
		label string
		frac  float64
	}{
		{"Session", snap.SessionFraction},
		{"Week", snap.WeeklyFraction},
	}
	for i, r := range rows {
		h.table.SetCell(i, 0, tview.NewTableCell(" "+r.label).SetTextColor(ColorText))
		h.table.SetCell(i, 1, tview.NewTableCell(bar(r.frac, 20)).SetTextColor(FractionColor(r.frac)))
		h.table.SetCell(i, 2, tview.NewTableCell(fmt.Sprintf("%3.0f%%", r.frac*100)).
			SetTextColor(FractionColor(r.frac)).SetAlign(tview.AlignRight))
	}
}

func (h *Home) renderPreview() {
	st := h.state
	var sb strings.Builder
	if e := st.LastError; e != nil {
		sb.WriteString(fmt.Sprintf("[red]%s[-]\n", tview.Escape(e.Message)))
		if st.Snapshot.HasData {
			sb.WriteString("[dim]Showing values from the last successful fetch.[-]\n")
		}
		sb.WriteString("\n")
	}
	for _, l := range dialogs.ReadableLines(st.Diagnostic()) {
		sb.WriteString(tview.Escape(l) + "\n")
	}
	h.preview.SetText(sb.String())
}

// HeaderText renders the indicator line.
func HeaderText(st usage.State, threshold float64, flash bool, now time.Time) string {
	icon, color := IndicatorIcon(st, threshold, flash)
	text := fmt.Sprintf("[#%06x]%s[-] [blue]CLAUDE USAGE[-]", color.Hex(), icon)
	snap := st.Snapshot
	if snap.HasData {
		text += fmt.Sprintf("   session %.0f%%  week %.0f%%   [gray]updated %s[-]",
			snap.SessionFraction*100, snap.WeeklyFraction*100,
			humanize.RelTime(snap.CapturedAt, now, "ago", "from now"))
	}
	switch {
	case !st.Started:
		text += "   [yellow]press c to choose a working folder[-]"
	case st.InFlight:
		text += "   [purple]fetching...[-]"
	}
	return text
}

// FooterText lists the keys, leaving out refresh while a fetch is running.
func FooterText(st usage.State) string {
	keys := "[green]Enter[-] details  [green]c[-] folder  [green]d[-] debug  [green]?[-] help  [green]q[-] quit"
	if st.Started && !st.InFlight {
		keys = "[green]r[-] refresh  " + keys
	}
	return keys
}

func bar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (h *Home) setupInput() {
	h.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			call(h.onDetails)
			return nil
		}
		switch event.Rune() {
		case 'r':
			if h.state.Started && !h.state.InFlight {
				call(h.onRefresh)
			}
			return nil
		case 'u':
			call(h.onDetails)
			return nil
		case 'c':
			call(h.onChange)
			return nil
		case 'd':
			call(h.onDebug)
			return nil
		case 'q':
			call(h.onQuit)
			return nil
		}
		return event
	})
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
