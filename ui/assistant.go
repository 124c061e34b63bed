package ui

import (
	"context"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/labdesk/v2/internal/types"
	"github.com/labdesk/v2/services"
)

// analysisSection shows the popular-times analysis as labelled bars.
type analysisSection struct {
	d     *DashboardWindow
	hours *fyne.Container
	labs  *fyne.Container
}

func newAnalysisSection(d *DashboardWindow) *analysisSection {
	return &analysisSection{d: d, hours: container.NewVBox(), labs: container.NewVBox()}
}

func (s *analysisSection) content() fyne.CanvasObject {
	return container.NewVScroll(container.NewGridWithColumns(2,
		widget.NewCard("Popular hours", "Reservations by start hour", s.hours),
		widget.NewCard("Popular labs", "Reservations by lab", s.labs),
	))
}

func (s *analysisSection) refresh() {
	var analysis *types.PopularTimes
	s.d.async(func(ctx context.Context) error {
		var err error
		analysis, err = s.d.stack.Reservations.PopularTimes(ctx)
		return err
	}, func(err error) {
		if err != nil {
			s.d.showError(err)
			return
		}
		hours := make([]bar, len(analysis.PopularHours))
		for i, h := range analysis.PopularHours {
			hours[i] = bar{label: fmt.Sprintf("%02d:00", h.Hour), count: h.Count}
		}
		labs := make([]bar, len(analysis.PopularLabs))
		for i, l := range analysis.PopularLabs {
			labs[i] = bar{label: l.LabName, count: l.Count}
		}
		fillBars(s.hours, hours)
		fillBars(s.labs, labs)
	})
}

type bar struct {
	label string
	count int
}

func fillBars(box *fyne.Container, bars []bar) {
	box.RemoveAll()
	if len(bars) == 0 {
		box.Add(widget.NewLabel("No data yet."))
		return
	}
	top := 0
	for _, b := range bars {
		if b.count > top {
			top = b.count
		}
	}
	for _, b := range bars {
		count := b.count
		progress := widget.NewProgressBar()
		progress.Max = float64(top)
		progress.TextFormatter = func() string { return strconv.Itoa(count) }
		progress.SetValue(float64(count))
		box.Add(container.NewBorder(nil, nil, widget.NewLabel(b.label), nil, progress))
	}
	box.Refresh()
}

// assistantSection is the chat with the AI assistant.
type assistantSection struct {
	d    *DashboardWindow
	conv *services.Conversation

	transcript *fyne.Container
	scroll     *container.Scroll
	input      *widget.Entry
	send       *widget.Button
}

func newAssistantSection(d *DashboardWindow) *assistantSection {
	return &assistantSection{d: d, conv: services.NewConversation(d.stack.Chat)}
}

func (s *assistantSection) content() fyne.CanvasObject {
	s.transcript = container.NewVBox()
	s.scroll = container.NewVScroll(s.transcript)

	s.input = widget.NewEntry()
	s.input.SetPlaceHolder("Ask about reservations...")
	s.input.OnSubmitted = func(string) { s.ask() }
	s.send = widget.NewButtonWithIcon("Send", theme.MailSendIcon(), s.ask)

	resetButton := widget.NewButtonWithIcon("", theme.ContentClearIcon(), s.reset)
	bottom := container.NewBorder(nil, nil, resetButton, s.send, s.input)
	return container.NewBorder(nil, bottom, nil, nil, s.scroll)
}

func (s *assistantSection) refresh() {
	s.transcript.RemoveAll()
	for _, m := range s.conv.Messages() {
		label := widget.NewLabel(fmt.Sprintf("%s: %s", m.Role, m.Content))
		label.Wrapping = fyne.TextWrapWord
		label.TextStyle = fyne.TextStyle{Bold: m.Role == services.RoleUser}
		s.transcript.Add(label)
	}
	s.transcript.Refresh()
	s.scroll.ScrollToBottom()
}

func (s *assistantSection) ask() {
	question := s.input.Text
	if question == "" {
		return
	}
	s.input.SetText("")
	s.send.Disable()

	s.d.async(func(ctx context.Context) error {
		_, err := s.conv.Send(ctx, question)
		return err
	}, func(err error) {
		s.send.Enable()
		s.refresh()
		if err != nil {
			s.d.showError(err)
		}
	})
}

func (s *assistantSection) reset() {
	s.conv.Reset()
	if s.transcript != nil {
		s.refresh()
	}
}

// auditSection lists the server audit log, newest first.
type auditSection struct {
	d     *DashboardWindow
	items []types.AuditEntry
	table *widget.Table
	more  *widget.Button
}

const auditPageSize = 100

func newAuditSection(d *DashboardWindow) *auditSection {
	return &auditSection{d: d}
}

func (s *auditSection) rows() [][]string {
	out := make([][]string, len(s.items))
	for i, e := range s.items {
		details := ""
		if e.Details != nil {
			details = *e.Details
		}
		out[i] = []string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatInt(e.UserID, 10),
			e.Action,
			e.TargetModel,
			strconv.FormatInt(e.TargetID, 10),
			details,
		}
	}
	return out
}

func (s *auditSection) content() fyne.CanvasObject {
	s.table = newDataTable([]string{"When (UTC)", "User", "Action", "Model", "Target", "Details"}, s.rows, nil)
	s.more = widget.NewButton("Load more", func() { s.load(len(s.items)) })
	return container.NewBorder(nil, s.more, nil, nil, s.table)
}

func (s *auditSection) refresh() {
	s.items = nil
	s.load(0)
}

func (s *auditSection) load(skip int) {
	var page []types.AuditEntry
	s.d.async(func(ctx context.Context) error {
		var err error
		page, err = s.d.stack.Audit.List(ctx, skip, auditPageSize)
		return err
	}, func(err error) {
		if err != nil {
			s.d.showError(err)
			return
		}
		s.items = append(s.items, page...)
		if len(page) < auditPageSize {
			s.more.Disable()
		} else {
			s.more.Enable()
		}
		s.table.Refresh()
	})
}
