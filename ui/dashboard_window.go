package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/labdesk/v2/assets"
	"github.com/labdesk/v2/internal/app"
	"github.com/labdesk/v2/services"
)

// section is one tab of the dashboard. refresh reloads its data and is
// called on the UI goroutine.
type section interface {
	content() fyne.CanvasObject
	refresh()
}

// DashboardWindow is the main window shown while the session is
// authenticated.
type DashboardWindow struct {
	App fyne.App
	Win fyne.Window

	stack *app.App
	log   *zap.Logger

	tabs      *container.AppTabs
	sections  map[*container.TabItem]section
	assistant *assistantSection
}

// NewDashboardWindow builds the window and its sections. Data is loaded when
// a tab is first shown.
func NewDashboardWindow(a fyne.App, stack *app.App, log *zap.Logger) *DashboardWindow {
	d := &DashboardWindow{
		App:      a,
		stack:    stack,
		log:      log,
		sections: make(map[*container.TabItem]section),
	}
	d.Win = a.NewWindow("labdesk")
	d.Win.Resize(fyne.NewSize(960, 640))
	if icon := assets.Icon(); icon != nil {
		d.Win.SetIcon(icon)
	}

	d.setupUI()

	d.Win.SetCloseIntercept(func() {
		d.Win.Hide()
	})
	d.setupSystemTray()
	return d
}

func (d *DashboardWindow) setupUI() {
	d.assistant = newAssistantSection(d)

	d.tabs = container.NewAppTabs()
	d.addSection("Overview", theme.HomeIcon(), newOverviewSection(d))
	d.addSection("Reservations", theme.ListIcon(), newReservationsSection(d))
	d.addSection("Rooms", theme.StorageIcon(), newRoomsSection(d))
	d.addSection("Equipment", theme.SettingsIcon(), newEquipmentSection(d))
	d.addSection("Members", theme.AccountIcon(), newMembersSection(d))
	d.addSection("Bookings", theme.HistoryIcon(), newBookingsSection(d))
	d.addSection("Calendar", theme.GridIcon(), newCalendarSection(d))
	d.addSection("Analysis", theme.InfoIcon(), newAnalysisSection(d))
	d.addSection("Assistant", theme.MailComposeIcon(), d.assistant)
	d.addSection("Audit", theme.DocumentIcon(), newAuditSection(d))
	d.addSection("Settings", theme.SettingsIcon(), newSettingsSection(d))
	d.tabs.SetTabLocation(container.TabLocationLeading)
	d.tabs.OnSelected = func(item *container.TabItem) {
		if s, ok := d.sections[item]; ok {
			s.refresh()
		}
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.ViewRefreshIcon(), d.refreshCurrent),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.LogoutIcon(), d.logout),
	)
	d.Win.SetContent(container.NewBorder(toolbar, nil, nil, nil, d.tabs))
}

func (d *DashboardWindow) addSection(title string, icon fyne.Resource, s section) {
	item := container.NewTabItemWithIcon(title, icon, s.content())
	d.sections[item] = s
	d.tabs.Append(item)
}

func (d *DashboardWindow) refreshCurrent() {
	if s, ok := d.sections[d.tabs.Selected()]; ok {
		s.refresh()
	}
}

// Show displays the window and reloads the visible section.
func (d *DashboardWindow) Show() {
	d.Win.Show()
	d.refreshCurrent()
}

// Reset hides the window and forgets per-session view state.
func (d *DashboardWindow) Reset() {
	d.assistant.reset()
	d.tabs.SelectIndex(0)
	d.Win.Hide()
}

func (d *DashboardWindow) logout() {
	dialog.ShowConfirm("Log out", "End the session on this device?", func(ok bool) {
		if ok {
			d.stack.Session.Logout()
		}
	}, d.Win)
}

// setupSystemTray configures the system tray icon and menu
func (d *DashboardWindow) setupSystemTray() {
	desk, ok := d.App.(desktop.App)
	if !ok {
		d.log.Debug("system tray not supported on this platform")
		return
	}
	showItem := fyne.NewMenuItem("Show", func() {
		d.Win.Show()
		d.Win.RequestFocus()
	})
	logoutItem := fyne.NewMenuItem("Log out", func() {
		d.stack.Session.Logout()
	})
	desk.SetSystemTrayMenu(fyne.NewMenu("labdesk", showItem, logoutItem))
	if icon := assets.Icon(); icon != nil {
		desk.SetSystemTrayIcon(icon)
	}
}

// async runs work off the UI goroutine and hands its error to done on the UI
// goroutine.
func (d *DashboardWindow) async(work func(ctx context.Context) error, done func(error)) {
	go func() {
		ctx, cancel := d.stack.RequestContext()
		defer cancel()
		err := work(ctx)
		fyne.Do(func() { done(err) })
	}()
}

func (d *DashboardWindow) showError(err error) {
	showError(d.Win, err)
}

// showError reports err in a dialog. Unauthorized errors are not shown: the
// session has already ended and the router is switching to the login view.
func showError(win fyne.Window, err error) {
	msg := services.UserMessage(err)
	if msg == "" {
		return
	}
	dialog.ShowError(errors.New(msg), win)
}

// overviewSection shows the dashboard statistics.
type overviewSection struct {
	d      *DashboardWindow
	values [4]*widget.Label
	status *widget.Label
}

func newOverviewSection(d *DashboardWindow) *overviewSection {
	s := &overviewSection{d: d, status: widget.NewLabel("")}
	for i := range s.values {
		s.values[i] = widget.NewLabelWithStyle("-", fyne.TextAlignCenter, fyne.TextStyle{Bold: true, Monospace: true})
		s.values[i].Importance = widget.HighImportance
	}
	return s
}

func (s *overviewSection) content() fyne.CanvasObject {
	titles := [4]string{"Active reservations", "Rooms", "Available equipment", "Members"}
	cards := make([]fyne.CanvasObject, len(titles))
	for i, title := range titles {
		cards[i] = widget.NewCard(title, "", container.NewCenter(s.values[i]))
	}
	return container.NewVBox(
		container.NewGridWithColumns(2, cards...),
		s.status,
	)
}

func (s *overviewSection) refresh() {
	s.status.SetText("Refreshing...")
	var values [4]int
	s.d.async(func(ctx context.Context) error {
		st, err := s.d.stack.Dashboard.Refresh(ctx)
		values = [4]int{st.ActiveReservations, st.Rooms, st.AvailableEquipment, st.Members}
		return err
	}, func(err error) {
		for i, v := range values {
			s.values[i].SetText(fmt.Sprint(v))
		}
		if err != nil {
			s.values[0].SetText("-")
			s.status.SetText(services.UserMessage(err))
			return
		}
		s.status.SetText("Updated " + time.Now().Format("15:04:05"))
	})
}
