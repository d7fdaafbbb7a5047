// Package ui provides the Fyne-based GUI for the radiolink client.
package ui

import (
	"context"
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/auth"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/frequency"
	"github.com/NicolasHaas/radiolink/pkg/model"
	"github.com/NicolasHaas/radiolink/pkg/version"
)

// Deps are the components the GUI drives. They are built by the caller.
type Deps struct {
	Settings *client.Settings
	API      *api.Client
	Guard    *auth.Guard
	Engine   *client.Engine
	Dial     *frequency.Dial
	Hotkeys  *client.GlobalHotkeys
}

// App is the main GUI application.
type App struct {
	fyneApp fyne.App
	window  fyne.Window

	settings *client.Settings
	api      *api.Client
	guard    *auth.Guard
	engine   *client.Engine
	dial     *frequency.Dial
	hotkeys  *client.GlobalHotkeys

	// Screens
	root     *fyne.Container
	loading  fyne.CanvasObject
	login    *loginScreen
	tabs     *container.AppTabs
	logsTab  *container.TabItem
	logsView *logsView

	// Radio screen
	display      *frequencyDisplay
	keypad       []*widget.Button
	connectBtn   *widget.Button
	talkBtn      *TalkButton
	onAir        *canvas.Text
	stateLabel   *widget.Label
	errorLabel   *canvas.Text
	userLabel    *widget.Label
	participants []model.Participant
	peerList     *widget.List

	status     client.Status
	unsubGuard func()
}

// NewApp creates the GUI around deps.
func NewApp(deps Deps) *App {
	// Start PortAudio init in background immediately so it's ready by the time the user connects
	audio.PreInitAudio()

	a := &App{
		fyneApp:  app.NewWithID("io.radiolink.client"),
		settings: deps.Settings,
		api:      deps.API,
		guard:    deps.Guard,
		engine:   deps.Engine,
		dial:     deps.Dial,
		hotkeys:  deps.Hotkeys,
	}
	a.window = a.fyneApp.NewWindow("radiolink")
	a.window.Resize(fyne.NewSize(420, 640))
	a.window.SetMaster()
	return a
}

// Run starts the GUI application (blocks).
func (a *App) Run() {
	a.buildUI()
	a.bindEvents()
	a.startGlobalHotkeys()
	a.window.SetCloseIntercept(func() {
		a.shutdown()
		a.fyneApp.Quit()
	})
	a.window.ShowAndRun()
}

func (a *App) shutdown() {
	if a.unsubGuard != nil {
		a.unsubGuard()
	}
	if a.hotkeys != nil {
		a.hotkeys.Stop()
	}
	a.engine.Disconnect()
}

func (a *App) buildUI() {
	a.loading = container.NewCenter(widget.NewProgressBarInfinite())
	a.login = newLoginScreen(a)
	a.logsView = newLogsView(a)

	radioTab := container.NewTabItemWithIcon("Radio", theme.MediaRecordIcon(), a.buildRadio())
	a.logsTab = container.NewTabItemWithIcon("Join log", theme.ListIcon(), a.logsView.content)
	a.tabs = container.NewAppTabs(radioTab, a.logsTab)
	a.tabs.OnSelected = func(item *container.TabItem) {
		// Each protected navigation revalidates the credential.
		a.applyGuard()
		if item == a.logsTab && a.guard.Admin() == auth.Allow {
			a.logsView.refresh()
		}
	}

	a.userLabel = widget.NewLabel("")
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), a.showSettingsDialog)
	logoutBtn := widget.NewButtonWithIcon("Sign out", theme.LogoutIcon(), a.logout)
	toolbar := container.NewHBox(a.userLabel, layout.NewSpacer(), settingsBtn, logoutBtn)

	versionLabel := widget.NewLabelWithStyle(version.String(), fyne.TextAlignTrailing, fyne.TextStyle{Italic: true})
	main := container.NewBorder(toolbar, versionLabel, nil, nil, a.tabs)

	a.root = container.NewStack(a.loading, a.login.content, main)
	a.showScreen(a.loading)
	a.window.SetContent(a.root)
}

func (a *App) buildRadio() fyne.CanvasObject {
	a.display = newFrequencyDisplay()
	a.display.set(a.dial.Value())

	grid := container.NewGridWithColumns(3)
	for _, key := range frequency.Keys {
		key := key
		btn := widget.NewButton(key, func() {
			a.display.set(a.dial.ApplyKey(key))
		})
		if key == frequency.KeyReset {
			btn.Importance = widget.WarningImportance
		}
		a.keypad = append(a.keypad, btn)
		grid.Add(btn)
	}

	a.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), a.toggleConnection)
	a.connectBtn.Importance = widget.HighImportance

	a.talkBtn = NewTalkButton("Hold to talk", a.engine.PTT())
	a.talkBtn.Disable()

	a.onAir = canvas.NewText("ON AIR", color.NRGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xFF})
	a.onAir.TextStyle = fyne.TextStyle{Bold: true}
	a.onAir.Alignment = fyne.TextAlignCenter
	a.onAir.Hide()

	a.stateLabel = widget.NewLabelWithStyle("Idle", fyne.TextAlignCenter, fyne.TextStyle{})
	a.errorLabel = canvas.NewText("", theme.Color(theme.ColorNameError))
	a.errorLabel.Alignment = fyne.TextAlignCenter

	a.peerList = widget.NewList(
		func() int { return len(a.participants) },
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.AccountIcon()), widget.NewLabel(""), layout.NewSpacer(), widget.NewIcon(theme.VolumeUpIcon()))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(a.participants) {
				return
			}
			p := a.participants[id]
			row := obj.(*fyne.Container)
			row.Objects[1].(*widget.Label).SetText(p.DisplayName())
			if p.HasAudio {
				row.Objects[3].Show()
			} else {
				row.Objects[3].Hide()
			}
		},
	)

	top := container.NewVBox(
		container.NewCenter(a.display.content),
		a.stateLabel,
		a.errorLabel,
		grid,
		a.connectBtn,
		a.onAir,
		a.talkBtn,
		widget.NewLabelWithStyle("On this frequency", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)
	return container.NewBorder(top, nil, nil, nil, a.peerList)
}

func (a *App) bindEvents() {
	a.engine.OnStatus = func(st client.Status) {
		fyne.Do(func() { a.applyStatus(st) })
	}
	a.unsubGuard = a.guard.Subscribe(func(auth.Snapshot) {
		fyne.Do(a.applyGuard)
	})
}

func (a *App) startGlobalHotkeys() {
	if a.hotkeys == nil || a.settings.PTTKey == "" {
		return
	}
	a.engine.PTT().AddKey(a.settings.PTTKey)
	a.hotkeys.OnEvent = a.engine.PTT().Handle
	a.hotkeys.SetKey(a.settings.PTTKey)
	a.hotkeys.Start()
}

// applyGuard picks the screen for the current authentication state.
func (a *App) applyGuard() {
	switch a.guard.Route() {
	case auth.Deferred:
		a.showScreen(a.loading)
		return
	case auth.Redirect:
		a.engine.Disconnect()
		a.login.reset()
		a.showScreen(a.login.content)
		return
	}

	if id := a.guard.Identity(); id != nil {
		a.userLabel.SetText(fmt.Sprintf("%s (%s)", id.Username, id.Role()))
	} else {
		a.userLabel.SetText("")
	}
	if a.guard.Admin() == auth.Allow {
		a.tabs.EnableItem(a.logsTab)
	} else {
		if a.tabs.Selected() == a.logsTab {
			a.tabs.SelectIndex(0)
		}
		a.tabs.DisableItem(a.logsTab)
	}
	a.showScreen(a.root.Objects[2])
}

func (a *App) showScreen(screen fyne.CanvasObject) {
	for _, obj := range a.root.Objects {
		if obj == screen {
			obj.Show()
		} else {
			obj.Hide()
		}
	}
}

func (a *App) applyStatus(st client.Status) {
	a.status = st

	switch st.State {
	case client.StateIdle:
		a.stateLabel.SetText("Idle")
		a.connectBtn.SetText("Connect")
		a.connectBtn.SetIcon(theme.LoginIcon())
		a.connectBtn.Enable()
	case client.StateConnecting:
		a.stateLabel.SetText(fmt.Sprintf("Connecting to %s...", model.FormatFrequency(st.Frequency)))
		a.connectBtn.SetText("Cancel")
		a.connectBtn.SetIcon(theme.CancelIcon())
	case client.StateOpen:
		label := model.FormatFrequency(st.Frequency)
		if st.Room != "" {
			label += " (" + st.Room + ")"
		}
		a.stateLabel.SetText("On " + label)
		a.connectBtn.SetText("Disconnect")
		a.connectBtn.SetIcon(theme.LogoutIcon())
	case client.StateClosing:
		a.stateLabel.SetText("Closing...")
		a.connectBtn.Disable()
	}

	frozen := st.State == client.StateConnecting || st.State == client.StateOpen
	for _, btn := range a.keypad {
		if frozen && btn.Text != frequency.KeyReset {
			btn.Disable()
		} else {
			btn.Enable()
		}
	}
	a.display.set(a.dial.Value())

	a.errorLabel.Text = st.Error
	a.errorLabel.Refresh()

	if st.PTTEnabled {
		a.talkBtn.Enable()
	} else {
		a.talkBtn.Disable()
	}
	if st.Transmitting {
		a.onAir.Show()
	} else {
		a.onAir.Hide()
	}

	a.participants = st.Participants
	a.peerList.Refresh()
}

func (a *App) toggleConnection() {
	switch a.status.State {
	case client.StateIdle:
		display := a.dial.Value()
		a.errorLabel.Text = ""
		a.errorLabel.Refresh()
		go func() {
			// Failures are published through OnStatus.
			_ = a.engine.Connect(context.Background(), display)
		}()
	case client.StateConnecting, client.StateOpen:
		go a.engine.Disconnect()
	}
}

func (a *App) logout() {
	a.engine.Disconnect()
	a.guard.Logout()
}
