package dialogs

import (
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usagebar/internal/ansi"
)

// minReadableRunes is how many letters, digits or punctuation marks a line
// needs before it is worth showing.
const minReadableRunes = 10

// ReadableLines strips escape sequences from raw terminal output and keeps the
// lines with enough visible text to be informative, trimmed.
func ReadableLines(raw string) []string {
	clean := ansi.Strip(strings.ReplaceAll(raw, "\r", "\n"))
	var out []string
	for _, line := range strings.Split(clean, "\n") {
		n := 0
		for _, r := range line {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
				n++
			}
		}
		if n >= minReadableRunes {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// DebugDialog shows the poller's diagnostic log and the readable part of the
// last captured output.
func DebugDialog(logLines []string, diagnostic string, onClose func()) *tview.TextView {
	var sb strings.Builder
	sb.WriteString("[yellow]Recent Activity[-]\n\n")
	if len(logLines) == 0 {
		sb.WriteString("  [dim]nothing logged yet[-]\n")
	}
	for _, l := range logLines {
		sb.WriteString("  " + tview.Escape(l) + "\n")
	}

	sb.WriteString("\n[yellow]Last Output[-]\n\n")
	lines := ReadableLines(diagnostic)
	if len(lines) == 0 {
		sb.WriteString("  [dim]no readable output captured[-]\n")
	}
	for _, l := range lines {
		sb.WriteString("  " + tview.Escape(l) + "\n")
	}
	sb.WriteString("\nPress [green]Escape[-] or [green]q[-] to close.")

	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Debug ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetScrollable(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(sb.String())
	tv.ScrollToEnd()
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
