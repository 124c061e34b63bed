package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/labdesk/v2/internal/types"
)

const startLayout = "2006-01-02 15:04"

// reservationsSection lists the remote reservations with filters and a
// create/edit form.
type reservationsSection struct {
	d *DashboardWindow

	labFilter  *widget.Entry
	dateFilter *widget.Entry
	status     *widget.Label
	table      *widget.Table

	items    []types.Reservation
	selected int
}

func newReservationsSection(d *DashboardWindow) *reservationsSection {
	return &reservationsSection{d: d, selected: -1}
}

func (s *reservationsSection) rows() [][]string {
	out := make([][]string, len(s.items))
	for i, r := range s.items {
		active := "no"
		if r.Active {
			active = "yes"
		}
		out[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.LabName,
			r.ReservedBy,
			r.Purpose,
			r.StartTime.UTC().Format(startLayout),
			active,
		}
	}
	return out
}

func (s *reservationsSection) content() fyne.CanvasObject {
	s.labFilter = widget.NewEntry()
	s.labFilter.SetPlaceHolder("Lab name contains...")
	s.labFilter.OnSubmitted = func(string) { s.refresh() }
	s.dateFilter = widget.NewEntry()
	s.dateFilter.SetPlaceHolder("YYYY-MM-DD")
	s.dateFilter.OnSubmitted = func(string) { s.refresh() }
	s.status = widget.NewLabel("")

	s.table = newDataTable(
		[]string{"ID", "Lab", "Reserved by", "Purpose", "Start (UTC)", "Active"},
		s.rows,
		func(row int) { s.selected = row },
	)

	filters := container.NewGridWithColumns(3,
		s.labFilter,
		s.dateFilter,
		widget.NewButtonWithIcon("Filter", theme.SearchIcon(), s.refresh),
	)
	actions := container.NewHBox(
		widget.NewButtonWithIcon("New", theme.ContentAddIcon(), s.create),
		widget.NewButtonWithIcon("Edit", theme.DocumentCreateIcon(), s.edit),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), s.delete),
		s.status,
	)
	return container.NewBorder(container.NewVBox(filters, actions), nil, nil, nil, s.table)
}

func (s *reservationsSection) filter() (types.ReservationFilter, error) {
	f := types.ReservationFilter{LabName: strings.TrimSpace(s.labFilter.Text)}
	if raw := strings.TrimSpace(s.dateFilter.Text); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, &types.ValidationError{Problems: []string{fmt.Sprintf("date %q is not YYYY-MM-DD", raw)}}
		}
		f.StartDate = day
	}
	return f, nil
}

func (s *reservationsSection) refresh() {
	filter, err := s.filter()
	if err != nil {
		s.d.showError(err)
		return
	}
	s.status.SetText("Loading...")

	var items []types.Reservation
	s.d.async(func(ctx context.Context) error {
		var err error
		items, err = s.d.stack.Reservations.ListFiltered(ctx, filter)
		return err
	}, func(err error) {
		if err != nil {
			s.status.SetText("")
			s.d.showError(err)
			return
		}
		s.items = items
		s.selected = -1
		s.table.UnselectAll()
		s.table.Refresh()
		s.status.SetText(fmt.Sprintf("%d reservations", len(items)))
	})
}

func (s *reservationsSection) current() (types.Reservation, bool) {
	if s.selected < 0 || s.selected >= len(s.items) {
		dialog.ShowInformation("Nothing selected", "Select a reservation first.", s.d.Win)
		return types.Reservation{}, false
	}
	return s.items[s.selected], true
}

func (s *reservationsSection) create() {
	in := types.ReservationInput{Active: true}
	s.showForm("New reservation", in, func(ctx context.Context, in types.ReservationInput) error {
		_, err := s.d.stack.Reservations.CreateReservation(ctx, in)
		return err
	})
}

func (s *reservationsSection) edit() {
	r, ok := s.current()
	if !ok {
		return
	}
	s.showForm(fmt.Sprintf("Edit reservation %d", r.ID), r.Input(), func(ctx context.Context, in types.ReservationInput) error {
		_, err := s.d.stack.Reservations.UpdateReservation(ctx, r.ID, in)
		return err
	})
}

func (s *reservationsSection) delete() {
	r, ok := s.current()
	if !ok {
		return
	}
	msg := fmt.Sprintf("Delete the reservation of %s on %s?", r.LabName, r.StartTime.UTC().Format(startLayout))
	dialog.ShowConfirm("Delete reservation", msg, func(confirmed bool) {
		if !confirmed {
			return
		}
		s.d.async(func(ctx context.Context) error {
			return s.d.stack.Reservations.Delete(ctx, r.ID)
		}, s.saved)
	}, s.d.Win)
}

func (s *reservationsSection) showForm(title string, in types.ReservationInput, save func(context.Context, types.ReservationInput) error) {
	lab := newEntry(in.LabName)
	by := newEntry(in.ReservedBy)
	purpose := widget.NewMultiLineEntry()
	purpose.SetText(in.Purpose)
	start := newEntry("")
	start.SetPlaceHolder(startLayout)
	if !in.StartTime.IsZero() {
		start.SetText(in.StartTime.UTC().Format(startLayout))
	}
	active := widget.NewCheck("", nil)
	active.SetChecked(in.Active)

	items := []*widget.FormItem{
		widget.NewFormItem("Lab", lab),
		widget.NewFormItem("Reserved by", by),
		widget.NewFormItem("Purpose", purpose),
		widget.NewFormItem("Start (UTC)", start),
		widget.NewFormItem("Active", active),
	}
	dialog.ShowForm(title, "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		in.LabName = lab.Text
		in.ReservedBy = by.Text
		in.Purpose = purpose.Text
		in.Active = active.Checked
		in.StartTime = types.Timestamp{}
		if t, err := types.ParseTimestamp(strings.Replace(strings.TrimSpace(start.Text), " ", "T", 1)); err == nil {
			in.StartTime = types.NewTimestamp(t)
		}
		if err := in.Validate(); err != nil {
			s.d.showError(err)
			return
		}
		s.d.async(func(ctx context.Context) error { return save(ctx, in) }, s.saved)
	}, s.d.Win)
}

func (s *reservationsSection) saved(err error) {
	if err != nil {
		s.d.showError(err)
	}
	s.refresh()
}
