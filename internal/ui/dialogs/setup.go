package dialogs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ExpandDir resolves a leading ~ and makes path absolute.
func ExpandDir(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("folder is required")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// ValidateDir expands path and checks that it names an existing directory.
func ValidateDir(path string) (string, error) {
	dir, err := ExpandDir(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}

// SetupDialog asks for the folder claude is run in. claude trusts folders
// individually, so this should be one the user has already opened claude in.
func SetupDialog(current string, onSubmit func(dir string), onCancel func()) *tview.Form {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Choose Working Folder ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBackgroundColor(tcell.ColorDefault)
	status.SetText("[dim]A folder where claude has already been trusted.[-]")

	form.AddInputField("Folder", current, 50, nil, nil)
	form.AddFormItem(status)
	form.AddButton("Save", func() {
		text := form.GetFormItemByLabel("Folder").(*tview.InputField).GetText()
		dir, err := ValidateDir(text)
		if err != nil {
			status.SetText("[red]" + tview.Escape(err.Error()) + "[-]")
			return
		}
		onSubmit(dir)
	})
	form.AddButton("Cancel", onCancel)
	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})
	return form
}
