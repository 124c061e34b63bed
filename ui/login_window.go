package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/auth"
	"github.com/labdesk/v2/services"
)

// RequestContext supplies the context of one remote call.
type RequestContext func() (context.Context, context.CancelFunc)

// NewLoginWindow creates the login window. It does not switch views itself:
// a successful login changes the session state and the router reacts to it.
func NewLoginWindow(a fyne.App, service auth.Service, newContext RequestContext, log *zap.Logger) fyne.Window {
	win := a.NewWindow("labdesk - Login")

	usernameEntry := widget.NewEntry()
	usernameEntry.SetPlaceHolder("Username")

	passwordEntry := widget.NewPasswordEntry()
	passwordEntry.SetPlaceHolder("Password")

	statusLabel := widget.NewLabel("")
	statusLabel.Wrapping = fyne.TextWrapWord

	var loginButton, registerButton *widget.Button
	busy := func(on bool) {
		if on {
			loginButton.Disable()
			registerButton.Disable()
			return
		}
		loginButton.Enable()
		registerButton.Enable()
	}

	submit := func() {
		creds := auth.Credentials{Username: usernameEntry.Text, Password: passwordEntry.Text}
		if creds.Username == "" || creds.Password == "" {
			statusLabel.SetText("Username and password are required.")
			return
		}
		statusLabel.SetText("Logging in...")
		busy(true)

		go func() {
			ctx, cancel := newContext()
			defer cancel()
			err := service.Login(ctx, creds)
			fyne.Do(func() {
				busy(false)
				if err != nil {
					log.Info("login failed", zap.Error(err))
					statusLabel.SetText(services.UserMessage(err))
					return
				}
				passwordEntry.SetText("")
				statusLabel.SetText("")
			})
		}()
	}

	loginButton = widget.NewButton("Login", submit)
	loginButton.Importance = widget.HighImportance
	passwordEntry.OnSubmitted = func(string) { submit() }

	registerButton = widget.NewButton("Create account", func() {
		showRegisterDialog(win, service, newContext, log, usernameEntry.Text)
	})

	form := container.NewVBox(
		widget.NewLabelWithStyle("Laboratory reservations", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		usernameEntry,
		passwordEntry,
		container.NewGridWithColumns(2, loginButton, registerButton),
		statusLabel,
	)

	win.SetContent(container.NewPadded(form))
	win.Resize(fyne.NewSize(340, 240))
	win.SetFixedSize(true)
	win.CenterOnScreen()
	return win
}

func showRegisterDialog(parent fyne.Window, service auth.Service, newContext RequestContext, log *zap.Logger, username string) {
	usernameEntry := widget.NewEntry()
	usernameEntry.SetText(username)
	passwordEntry := widget.NewPasswordEntry()
	fullNameEntry := widget.NewEntry()
	emailEntry := widget.NewEntry()

	items := []*widget.FormItem{
		widget.NewFormItem("Username", usernameEntry),
		widget.NewFormItem("Password", passwordEntry),
		widget.NewFormItem("Full name", fullNameEntry),
		widget.NewFormItem("Email", emailEntry),
	}
	dialog.ShowForm("Create account", "Register", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		reg := auth.Registration{
			Username: usernameEntry.Text,
			Password: passwordEntry.Text,
			FullName: fullNameEntry.Text,
			Email:    emailEntry.Text,
		}
		go func() {
			ctx, cancel := newContext()
			defer cancel()
			if err := service.Register(ctx, reg); err != nil {
				log.Info("registration failed", zap.Error(err))
				fyne.Do(func() { showError(parent, err) })
			}
		}()
	}, parent)
}
