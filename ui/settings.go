package ui

import (
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/client"
)

const defaultDevice = "(Default)"

var pttKeyOptions = []string{"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12", "Pause", "CapsLock", "Insert", "ScrollLock"}

func deviceSelect(devices []audio.DeviceEntry, current string) *widget.Select {
	names := make([]string, 0, len(devices)+1)
	names = append(names, defaultDevice)
	for _, d := range devices {
		names = append(names, d.Name)
	}
	sel := widget.NewSelect(names, nil)
	if current != "" {
		sel.SetSelected(current)
	} else {
		sel.SetSelected(defaultDevice)
	}
	return sel
}

func selectedDevice(sel *widget.Select) string {
	if sel.Selected == defaultDevice {
		return ""
	}
	return sel.Selected
}

func (a *App) showSettingsDialog() {
	inputDevices, err := audio.ListInputDevices()
	if err != nil {
		slog.Warn("list input devices", "err", err)
	}
	outputDevices, err := audio.ListOutputDevices()
	if err != nil {
		slog.Warn("list output devices", "err", err)
	}
	inputSelect := deviceSelect(inputDevices, a.settings.AudioInput)
	outputSelect := deviceSelect(outputDevices, a.settings.AudioOutput)

	pttSelect := widget.NewSelect(pttKeyOptions, nil)
	pttSelect.SetSelected(a.settings.PTTKey)

	apiEntry := widget.NewEntry()
	apiEntry.SetText(a.settings.APIURL)
	realtimeEntry := widget.NewEntry()
	realtimeEntry.SetText(a.settings.RealtimeURL)

	content := container.NewVBox(
		widget.NewLabelWithStyle("Audio", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		widget.NewLabel("Input Device:"),
		inputSelect,
		widget.NewLabel("Output Device:"),
		outputSelect,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Push-to-talk key (global, works in background)", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		pttSelect,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Servers", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabel("API URL:"),
		apiEntry,
		widget.NewLabel("Realtime URL:"),
		realtimeEntry,
	)

	d := dialog.NewCustomConfirm("Settings", "Apply", "Cancel", content,
		func(ok bool) {
			if !ok {
				return
			}
			next := *a.settings
			next.AudioInput = selectedDevice(inputSelect)
			next.AudioOutput = selectedDevice(outputSelect)
			next.PTTKey = pttSelect.Selected
			next.APIURL = strings.TrimSpace(apiEntry.Text)
			next.RealtimeURL = strings.TrimSpace(realtimeEntry.Text)
			if err := next.Validate(); err != nil {
				dialog.ShowError(err, a.window)
				return
			}
			*a.settings = next
			if err := a.settings.Save(); err != nil {
				slog.Error("save settings", "err", err)
			}

			// The push-to-talk key applies immediately.
			keys := append(append([]string(nil), client.DefaultTalkKeys...), a.settings.PTTKey)
			a.engine.PTT().SetKeys(keys...)
			if a.hotkeys != nil {
				a.hotkeys.SetKey(a.settings.PTTKey)
			}

			dialog.ShowInformation("Settings", "Settings saved. Device and server changes apply after restart.", a.window)
		}, a.window)
	d.Resize(fyne.NewSize(450, 560))
	d.Show()
}
