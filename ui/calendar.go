package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/labdesk/v2/core"
	"github.com/labdesk/v2/internal/types"
)

var weekdays = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// calendarSection shows a month grid with the days that have reservations
// highlighted.
type calendarSection struct {
	d *DashboardWindow

	month time.Time
	title *widget.Label
	grid  *fyne.Container
	byDay map[int][]types.Reservation
}

func newCalendarSection(d *DashboardWindow) *calendarSection {
	now := time.Now().UTC()
	return &calendarSection{
		d:     d,
		month: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		byDay: map[int][]types.Reservation{},
	}
}

func (s *calendarSection) content() fyne.CanvasObject {
	s.title = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	s.grid = container.NewGridWithColumns(7)

	nav := container.NewBorder(nil, nil,
		widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() { s.shift(-1) }),
		widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() { s.shift(1) }),
		s.title,
	)
	s.render()
	return container.NewBorder(nav, nil, nil, nil, container.NewVScroll(s.grid))
}

func (s *calendarSection) shift(months int) {
	s.month = s.month.AddDate(0, months, 0)
	s.refresh()
}

func (s *calendarSection) refresh() {
	month := s.month
	var items []types.Reservation
	s.d.async(func(ctx context.Context) error {
		var err error
		items, err = s.d.stack.Reservations.List(ctx)
		return err
	}, func(err error) {
		s.byDay = map[int][]types.Reservation{}
		if err != nil {
			s.d.showError(err)
		}
		for _, r := range items {
			start := r.StartTime.UTC()
			if start.Year() == month.Year() && start.Month() == month.Month() {
				s.byDay[start.Day()] = append(s.byDay[start.Day()], r)
			}
		}
		s.render()
	})
}

func (s *calendarSection) render() {
	grid := core.NewMonthGrid(s.month.Year(), s.month.Month())
	s.title.SetText(fmt.Sprintf("%s %d", grid.Month, grid.Year))

	cells := make([]fyne.CanvasObject, 0, 7*7)
	for _, wd := range weekdays {
		cells = append(cells, widget.NewLabelWithStyle(wd, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}))
	}
	for _, week := range grid.Weeks() {
		for _, day := range week {
			if day == 0 {
				cells = append(cells, widget.NewLabel(""))
				continue
			}
			day := day
			btn := widget.NewButton(fmt.Sprint(day), func() { s.showDay(day) })
			if n := len(s.byDay[day]); n > 0 {
				btn.SetText(fmt.Sprintf("%d (%d)", day, n))
				btn.Importance = widget.HighImportance
			} else {
				btn.Importance = widget.LowImportance
			}
			cells = append(cells, btn)
		}
	}
	s.grid.Objects = cells
	s.grid.Refresh()
}

func (s *calendarSection) showDay(day int) {
	items := s.byDay[day]
	date := time.Date(s.month.Year(), s.month.Month(), day, 0, 0, 0, 0, time.UTC)
	if len(items) == 0 {
		dialog.ShowInformation(date.Format("Monday, Jan 2"), "No reservations.", s.d.Win)
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime.Time) })
	lines := make([]string, len(items))
	for i, r := range items {
		lines[i] = fmt.Sprintf("%s  %s - %s", r.StartTime.UTC().Format("15:04"), r.LabName, r.ReservedBy)
	}
	dialog.ShowInformation(date.Format("Monday, Jan 2"), strings.Join(lines, "\n"), s.d.Win)
}

// settingsSection edits the lab configuration.
type settingsSection struct {
	d *DashboardWindow

	labName *widget.Entry
	open    *widget.Entry
	closing *widget.Entry
}

func newSettingsSection(d *DashboardWindow) *settingsSection {
	return &settingsSection{
		d:       d,
		labName: widget.NewEntry(),
		open:    widget.NewEntry(),
		closing: widget.NewEntry(),
	}
}

func (s *settingsSection) content() fyne.CanvasObject {
	s.open.SetPlaceHolder("HH:MM")
	s.closing.SetPlaceHolder("HH:MM")
	form := &widget.Form{
		Items: []*widget.FormItem{
			widget.NewFormItem("Lab name", s.labName),
			widget.NewFormItem("Opens at", s.open),
			widget.NewFormItem("Closes at", s.closing),
		},
		SubmitText: "Save",
		OnSubmit:   s.save,
	}
	return container.NewVBox(form)
}

func (s *settingsSection) refresh() {
	var settings types.LabSettings
	s.d.async(func(ctx context.Context) error {
		var err error
		settings, err = s.d.stack.Settings.Load(ctx)
		return err
	}, func(err error) {
		if err != nil {
			s.d.showError(err)
			return
		}
		s.labName.SetText(settings.LabName)
		s.open.SetText(settings.OpenTime)
		s.closing.SetText(settings.CloseTime)
	})
}

func (s *settingsSection) save() {
	settings := types.LabSettings{
		LabName:   strings.TrimSpace(s.labName.Text),
		OpenTime:  strings.TrimSpace(s.open.Text),
		CloseTime: strings.TrimSpace(s.closing.Text),
	}
	if err := settings.Validate(); err != nil {
		s.d.showError(err)
		return
	}
	s.d.async(func(ctx context.Context) error {
		return s.d.stack.Settings.Save(ctx, settings)
	}, func(err error) {
		if err != nil {
			s.d.showError(err)
			return
		}
		dialog.ShowInformation("Settings", "Configuration saved.", s.d.Win)
	})
}
