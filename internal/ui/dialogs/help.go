package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Keys[-]

  [green]r[-]        Refresh now (disabled while fetching)
  [green]Enter/u[-]  Usage details
  [green]c[-]        Change working folder
  [green]d[-]        Debug log and last output
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]Indicator[-]

  [green]●[-]        Usage fetched; color follows the higher quota
  [red]◉[-]        A quota is above the alert threshold
  [yellow]●[-]        Last fetch failed; values shown are stale
  [purple]⟳[-]        First fetch running
  [red]✗[-]        No data and the last fetch failed
  [gray]◻[-]        No working folder chosen yet

Press [green]Escape[-] or [green]?[-] to close.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
