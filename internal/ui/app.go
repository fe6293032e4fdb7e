package ui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/usagebar/internal/ui/dialogs"
	"github.com/zsprackett/usagebar/internal/usage"
)

// Poller is the usage poller as driven by the UI. *usagepoller.Poller
// implements it.
type Poller interface {
	Start() bool
	State() usage.State
	Refresh() bool
	WorkingDirectory() string
	SetWorkingDirectory(dir string) error
	DebugLog() []string
}

type App struct {
	tapp      *tview.Application
	pages     *tview.Pages
	home      *Home
	poller    Poller
	threshold float64
	logger    *slog.Logger
	usage     *dialogs.UsageDialog
	done      chan struct{}
}

func NewApp(poller Poller, threshold float64, logger *slog.Logger) *App {
	a := &App{
		poller:    poller,
		threshold: threshold,
		logger:    logger,
		done:      make(chan struct{}),
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.home = NewHome(a.tapp, threshold)

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' && !a.pages.HasPage("setup") {
			a.showHelp()
			return nil
		}
		return event
	})

	a.home.SetCallbacks(
		a.onRefresh,
		a.onDetails,
		a.onChangeDir,
		a.onDebug,
		func() { a.tapp.Stop() },
	)
	return a
}

// Redraw schedules a repaint with the poller's current state. Safe to call
// from any goroutine; does nothing once Run has returned.
func (a *App) Redraw() {
	select {
	case <-a.done:
		return
	default:
	}
	a.tapp.QueueUpdateDraw(a.refreshHome)
}

// Run shows the setup dialog when no working folder is configured, otherwise
// starts polling, then blocks until the user quits.
func (a *App) Run() error {
	defer close(a.done)
	if a.poller.WorkingDirectory() == "" {
		a.onChangeDir()
	} else {
		a.poller.Start()
	}
	a.refreshHome()
	go a.tick()
	return a.tapp.Run()
}

func (a *App) tick() {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.tapp.QueueUpdateDraw(a.home.Tick)
		case <-a.done:
			return
		}
	}
}

func (a *App) refreshHome() {
	st := a.poller.State()
	a.home.Update(st)
	if a.usage != nil {
		a.usage.Reload(st, a.threshold)
	}
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.tapp.SetFocus(a.home.table)
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 64, 22)
}

func (a *App) onRefresh() {
	if !a.poller.Refresh() {
		a.logger.Debug("refresh ignored: fetch in flight")
	}
}

func (a *App) onDetails() {
	a.usage = dialogs.NewUsageDialog(func() {
		a.usage = nil
		a.closeDialog("usage")
	}, a.poller.Refresh)
	a.usage.Reload(a.poller.State(), a.threshold)
	a.showDialog("usage", a.usage, 70, 24)
}

func (a *App) onChangeDir() {
	form := dialogs.SetupDialog(a.poller.WorkingDirectory(), func(dir string) {
		a.closeDialog("setup")
		if err := a.poller.SetWorkingDirectory(dir); err != nil {
			a.logger.Error("save working directory failed", "dir", dir, "err", err)
			a.showError(fmt.Sprintf("Could not save folder: %v", err))
			return
		}
		a.logger.Info("working directory set", "dir", dir)
		a.refreshHome()
	}, func() {
		a.closeDialog("setup")
	})
	a.showDialog("setup", form, 70, 9)
}

func (a *App) onDebug() {
	st := a.poller.State()
	dlg := dialogs.DebugDialog(a.poller.DebugLog(), st.Diagnostic(), func() {
		a.closeDialog("debug")
	})
	a.showDialog("debug", dlg, 100, 30)
}

func (a *App) showError(msg string) {
	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(_ int, _ string) {
			a.closeDialog("error")
		})
	a.pages.AddPage("error", modal, true, true)
}
