package ui

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/auth"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

const accountTimeout = 15 * time.Second

// loginScreen is shown whenever the guard redirects.
type loginScreen struct {
	app      *App
	content  fyne.CanvasObject
	username *widget.Entry
	password *widget.Entry
	errLabel *widget.Label
	submit   *widget.Button
}

func newLoginScreen(a *App) *loginScreen {
	s := &loginScreen{app: a}
	s.username = widget.NewEntry()
	s.username.SetPlaceHolder("Username")
	s.password = widget.NewPasswordEntry()
	s.password.SetPlaceHolder("Password")
	s.password.OnSubmitted = func(string) { s.login() }
	s.errLabel = widget.NewLabel("")
	s.errLabel.Wrapping = fyne.TextWrapWord
	s.errLabel.Importance = widget.DangerImportance

	s.submit = widget.NewButton("Sign in", s.login)
	s.submit.Importance = widget.HighImportance
	register := widget.NewButton("Create account", s.showRegister)
	register.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("radiolink", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	form := container.NewVBox(title, s.username, s.password, s.submit, register, s.errLabel)
	s.content = container.NewCenter(container.NewGridWrap(fyne.NewSize(300, 320), form))
	return s
}

func (s *loginScreen) reset() {
	s.password.SetText("")
	s.submit.Enable()
}

func (s *loginScreen) login() {
	username := strings.TrimSpace(s.username.Text)
	password := s.password.Text
	if username == "" || password == "" {
		s.errLabel.SetText("Enter username and password")
		return
	}
	s.submit.Disable()
	s.errLabel.SetText("")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), accountTimeout)
		defer cancel()
		raw, err := s.app.api.Login(ctx, username, password)
		if err == nil {
			err = s.app.guard.SetCredential(ctx, raw)
		}
		fyne.Do(func() {
			s.submit.Enable()
			if err != nil {
				s.errLabel.SetText(describeAccountError(err))
				return
			}
			s.password.SetText("")
		})
	}()
}

func (s *loginScreen) showRegister() {
	email := widget.NewEntry()
	username := widget.NewEntry()
	username.SetText(strings.TrimSpace(s.username.Text))
	password := widget.NewPasswordEntry()
	items := []*widget.FormItem{
		widget.NewFormItem("Email", email),
		widget.NewFormItem("Username", username),
		widget.NewFormItem("Password", password),
	}

	d := dialog.NewForm("Create account", "Register", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		reg := model.Registration{
			Email:    strings.TrimSpace(email.Text),
			Username: strings.TrimSpace(username.Text),
			Password: password.Text,
		}
		if errs := reg.Validate(); errs != nil {
			dialog.ShowError(errors.New(joinFieldErrors(errs)), s.app.window)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), accountTimeout)
			defer cancel()
			err := s.app.api.Register(ctx, reg)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(errors.New(describeAccountError(err)), s.app.window)
					return
				}
				s.username.SetText(reg.Username)
				s.errLabel.SetText("Account created, sign in to continue")
			})
		}()
	}, s.app.window)
	d.Resize(fyne.NewSize(360, 260))
	d.Show()
}

// describeAccountError turns login, registration and credential errors
// into one line for the form.
func describeAccountError(err error) string {
	var fe *api.FormError
	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case api.IsNetwork(err), errors.Is(err, context.DeadlineExceeded):
		return "Network error"
	case errors.Is(err, auth.ErrCredentialExpired):
		return "Received an expired credential"
	case errors.Is(err, auth.ErrRejected):
		return "Not authorized"
	default:
		return err.Error()
	}
}

func joinFieldErrors(errs map[string]error) string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+errs[f].Error())
	}
	return strings.Join(parts, "\n")
}
