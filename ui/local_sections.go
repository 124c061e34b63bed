package ui

import (
	"context"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/labdesk/v2/core"
	"github.com/labdesk/v2/internal/types"
)

// newDataTable renders rows under a header row. Selecting a cell reports its
// row index.
func newDataTable(headers []string, rows func() [][]string, onSelect func(row int)) *widget.Table {
	table := widget.NewTable(
		func() (int, int) { return len(rows()), len(headers) },
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.Truncation = fyne.TextTruncateEllipsis
			return label
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			data := rows()
			if id.Row < len(data) && id.Col < len(data[id.Row]) {
				obj.(*widget.Label).SetText(data[id.Row][id.Col])
			}
		},
	)
	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	}
	table.UpdateHeader = func(id widget.TableCellID, obj fyne.CanvasObject) {
		if id.Col >= 0 && id.Col < len(headers) {
			obj.(*widget.Label).SetText(headers[id.Col])
		}
	}
	for i := range headers {
		table.SetColumnWidth(i, 150)
	}
	if onSelect != nil {
		table.OnSelected = func(id widget.TableCellID) { onSelect(id.Row) }
	}
	return table
}

// localSection is a CRUD tab over a locally stored collection.
type localSection[T types.Entity[T]] struct {
	d       *DashboardWindow
	noun    string
	repo    *core.LocalRepository[T]
	headers []string
	row     func(T) []string
	// form builds the edit form for item and a reader for its result; nil
	// makes the section read-only.
	form     func(item T) ([]*widget.FormItem, func() (T, error))
	validate func(T) error

	items    []T
	selected int
	table    *widget.Table
}

func (s *localSection[T]) rows() [][]string {
	out := make([][]string, len(s.items))
	for i, item := range s.items {
		out[i] = append([]string{strconv.FormatInt(item.EntityID(), 10)}, s.row(item)...)
	}
	return out
}

func (s *localSection[T]) content() fyne.CanvasObject {
	s.selected = -1
	s.table = newDataTable(append([]string{"ID"}, s.headers...), s.rows, func(row int) { s.selected = row })
	if s.form == nil {
		return s.table
	}
	actions := container.NewHBox(
		widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), s.add),
		widget.NewButtonWithIcon("Edit", theme.DocumentCreateIcon(), s.edit),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), s.delete),
	)
	return container.NewBorder(actions, nil, nil, nil, s.table)
}

func (s *localSection[T]) refresh() {
	var items []T
	s.d.async(func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx)
		return err
	}, func(err error) {
		if err != nil {
			s.d.showError(err)
			return
		}
		s.items = items
		s.selected = -1
		s.table.UnselectAll()
		s.table.Refresh()
	})
}

func (s *localSection[T]) current() (T, bool) {
	var zero T
	if s.selected < 0 || s.selected >= len(s.items) {
		dialog.ShowInformation("Nothing selected", "Select a "+s.noun+" first.", s.d.Win)
		return zero, false
	}
	return s.items[s.selected], true
}

func (s *localSection[T]) add() {
	var zero T
	s.showForm("New "+s.noun, zero, func(ctx context.Context, item T) error {
		_, err := s.repo.Create(ctx, item)
		return err
	})
}

func (s *localSection[T]) edit() {
	item, ok := s.current()
	if !ok {
		return
	}
	id := item.EntityID()
	s.showForm(fmt.Sprintf("Edit %s %d", s.noun, id), item, func(ctx context.Context, item T) error {
		_, err := s.repo.Update(ctx, id, item)
		return err
	})
}

func (s *localSection[T]) delete() {
	item, ok := s.current()
	if !ok {
		return
	}
	id := item.EntityID()
	dialog.ShowConfirm("Delete "+s.noun, fmt.Sprintf("Delete %s %d?", s.noun, id), func(confirmed bool) {
		if !confirmed {
			return
		}
		s.d.async(func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		}, s.saved)
	}, s.d.Win)
}

func (s *localSection[T]) showForm(title string, item T, save func(context.Context, T) error) {
	items, read := s.form(item)
	dialog.ShowForm(title, "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		result, err := read()
		if err == nil {
			err = s.validate(result)
		}
		if err != nil {
			s.d.showError(err)
			return
		}
		s.d.async(func(ctx context.Context) error { return save(ctx, result) }, s.saved)
	}, s.d.Win)
}

func (s *localSection[T]) saved(err error) {
	if err != nil {
		s.d.showError(err)
	}
	s.refresh()
}

func newSelect(options []string, value string) *widget.Select {
	sel := widget.NewSelect(options, nil)
	if value == "" && len(options) > 0 {
		value = options[0]
	}
	sel.SetSelected(value)
	return sel
}

func newEntry(value string) *widget.Entry {
	entry := widget.NewEntry()
	entry.SetText(value)
	return entry
}

func newRoomsSection(d *DashboardWindow) *localSection[types.Room] {
	return &localSection[types.Room]{
		d:       d,
		noun:    "room",
		repo:    d.stack.Rooms,
		headers: []string{"Name", "Capacity", "Status"},
		row: func(r types.Room) []string {
			return []string{r.Name, strconv.Itoa(r.Capacity), r.Status}
		},
		form: func(r types.Room) ([]*widget.FormItem, func() (types.Room, error)) {
			name := newEntry(r.Name)
			capacity := newEntry("")
			if r.Capacity > 0 {
				capacity.SetText(strconv.Itoa(r.Capacity))
			}
			status := newSelect([]string{types.RoomAvailable, types.RoomOccupied, types.RoomMaintenance}, r.Status)
			return []*widget.FormItem{
					widget.NewFormItem("Name", name),
					widget.NewFormItem("Capacity", capacity),
					widget.NewFormItem("Status", status),
				}, func() (types.Room, error) {
					n, err := strconv.Atoi(capacity.Text)
					if err != nil {
						return r, &types.ValidationError{Problems: []string{"capacity must be a number"}}
					}
					r.Name, r.Capacity, r.Status = name.Text, n, status.Selected
					return r, nil
				}
		},
		validate: types.Room.Validate,
	}
}

func newEquipmentSection(d *DashboardWindow) *localSection[types.Equipment] {
	return &localSection[types.Equipment]{
		d:       d,
		noun:    "equipment",
		repo:    d.stack.Equipment,
		headers: []string{"Name", "Kind", "Status"},
		row: func(e types.Equipment) []string {
			return []string{e.Name, e.Kind, e.Status}
		},
		form: func(e types.Equipment) ([]*widget.FormItem, func() (types.Equipment, error)) {
			name := newEntry(e.Name)
			kind := newEntry(e.Kind)
			status := newSelect([]string{types.EquipmentAvailable, types.EquipmentInUse, types.EquipmentMaintenance}, e.Status)
			return []*widget.FormItem{
					widget.NewFormItem("Name", name),
					widget.NewFormItem("Kind", kind),
					widget.NewFormItem("Status", status),
				}, func() (types.Equipment, error) {
					e.Name, e.Kind, e.Status = name.Text, kind.Text, status.Selected
					return e, nil
				}
		},
		validate: types.Equipment.Validate,
	}
}

func newMembersSection(d *DashboardWindow) *localSection[types.Member] {
	return &localSection[types.Member]{
		d:       d,
		noun:    "member",
		repo:    d.stack.Members,
		headers: []string{"Name", "Email", "Role"},
		row: func(m types.Member) []string {
			return []string{m.Name, m.Email, m.Role}
		},
		form: func(m types.Member) ([]*widget.FormItem, func() (types.Member, error)) {
			name := newEntry(m.Name)
			email := newEntry(m.Email)
			role := newSelect([]string{types.RoleUser, types.RoleAdmin}, m.Role)
			return []*widget.FormItem{
					widget.NewFormItem("Name", name),
					widget.NewFormItem("Email", email),
					widget.NewFormItem("Role", role),
				}, func() (types.Member, error) {
					m.Name, m.Email, m.Role = name.Text, email.Text, role.Selected
					return m, nil
				}
		},
		validate: types.Member.Validate,
	}
}

func newBookingsSection(d *DashboardWindow) *localSection[types.Booking] {
	return &localSection[types.Booking]{
		d:       d,
		noun:    "booking",
		repo:    d.stack.Bookings,
		headers: []string{"User", "Resource", "Date", "Duration"},
		row: func(b types.Booking) []string {
			return []string{b.User, b.Resource, b.Date, b.Duration}
		},
	}
}
