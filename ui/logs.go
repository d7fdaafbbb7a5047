package ui

import (
	"context"
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

var logColumns = []string{"User", "Frequency", "Joined"}

// logsView is the admin join-log tab.
type logsView struct {
	app     *App
	content fyne.CanvasObject
	table   *widget.Table
	info    *widget.Label
	prev    *widget.Button
	next    *widget.Button

	page *api.LogPage
	num  int
}

func newLogsView(a *App) *logsView {
	v := &logsView{app: a, num: 1}
	v.table = widget.NewTableWithHeaders(
		func() (int, int) {
			if v.page == nil {
				return 0, len(logColumns)
			}
			return len(v.page.Results), len(logColumns)
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			if v.page == nil || id.Row >= len(v.page.Results) {
				return
			}
			obj.(*widget.Label).SetText(logCell(v.page.Results[id.Row], id.Col))
		},
	)
	v.table.CreateHeader = func() fyne.CanvasObject { return widget.NewLabel("") }
	v.table.UpdateHeader = func(id widget.TableCellID, obj fyne.CanvasObject) {
		if id.Row < 0 && id.Col >= 0 {
			obj.(*widget.Label).SetText(logColumns[id.Col])
		} else {
			obj.(*widget.Label).SetText("")
		}
	}
	v.table.ShowHeaderColumn = false
	v.table.SetColumnWidth(0, 140)
	v.table.SetColumnWidth(1, 110)
	v.table.SetColumnWidth(2, 160)

	v.info = widget.NewLabel("")
	v.prev = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() { v.load(v.num - 1) })
	v.next = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() { v.load(v.num + 1) })
	reload := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), v.refresh)
	v.prev.Disable()
	v.next.Disable()

	bar := container.NewHBox(v.info, layout.NewSpacer(), v.prev, v.next, reload)
	v.content = container.NewBorder(bar, nil, nil, nil, v.table)
	return v
}

func logCell(l model.JoinLog, col int) string {
	switch col {
	case 0:
		return l.Username
	case 1:
		return model.FormatFrequency(l.Frequency)
	default:
		return l.JoinedAt.Local().Format("2006-01-02 15:04:05")
	}
}

func (v *logsView) refresh() { v.load(v.num) }

func (v *logsView) load(num int) {
	if num < 1 {
		num = 1
	}
	bearer, ok := v.app.guard.Credential()
	if !ok || !v.app.guard.Check() {
		return
	}
	v.info.SetText("Loading...")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.app.settings.RequestTimeout)
		defer cancel()
		page, err := v.app.api.JoinLogs(ctx, bearer, num)
		if errors.Is(err, api.ErrUnauthorized) {
			v.app.guard.Invalidate()
		}
		fyne.Do(func() {
			if err != nil {
				v.info.SetText("Failed to load join log")
				return
			}
			v.page = page
			v.num = num
			v.info.SetText(fmt.Sprintf("%d joins", page.Count))
			if page.Previous != "" {
				v.prev.Enable()
			} else {
				v.prev.Disable()
			}
			if page.Next != "" {
				v.next.Enable()
			} else {
				v.next.Disable()
			}
			v.table.Refresh()
		})
	}()
}
