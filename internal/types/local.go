package types

import (
	"fmt"
	"strings"
	"time"
)

// Statuses a room can be in.
const (
	RoomAvailable   = "available"
	RoomOccupied    = "occupied"
	RoomMaintenance = "maintenance"
)

// Statuses a piece of equipment can be in.
const (
	EquipmentAvailable   = "available"
	EquipmentInUse       = "in_use"
	EquipmentMaintenance = "maintenance"
)

// Member roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Room is a bookable laboratory room, kept locally.
type Room struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

func (r Room) EntityID() int64 { return r.ID }

func (r Room) WithID(id int64) Room {
	r.ID = id
	return r
}

func (r Room) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.Capacity <= 0 {
		problems = append(problems, "capacity must be positive")
	}
	if !oneOf(r.Status, RoomAvailable, RoomOccupied, RoomMaintenance) {
		problems = append(problems, fmt.Sprintf("status %q is not one of available, occupied, maintenance", r.Status))
	}
	return problemsError(problems)
}

// Equipment is a piece of lab equipment, kept locally.
type Equipment struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

func (e Equipment) EntityID() int64 { return e.ID }

func (e Equipment) WithID(id int64) Equipment {
	e.ID = id
	return e
}

func (e Equipment) Validate() error {
	var problems []string
	if strings.TrimSpace(e.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(e.Kind) == "" {
		problems = append(problems, "kind is required")
	}
	if !oneOf(e.Status, EquipmentAvailable, EquipmentInUse, EquipmentMaintenance) {
		problems = append(problems, fmt.Sprintf("status %q is not one of available, in_use, maintenance", e.Status))
	}
	return problemsError(problems)
}

// Member is a lab user listed in the admin dashboard. It is unrelated to
// the API account used to log in.
type Member struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (m Member) EntityID() int64 { return m.ID }

func (m Member) WithID(id int64) Member {
	m.ID = id
	return m
}

func (m Member) Validate() error {
	var problems []string
	if strings.TrimSpace(m.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !strings.Contains(m.Email, "@") {
		problems = append(problems, "email is invalid")
	}
	if !oneOf(m.Role, RoleUser, RoleAdmin) {
		problems = append(problems, fmt.Sprintf("role %q is not one of user, admin", m.Role))
	}
	return problemsError(problems)
}

// Booking is a historical booking record shown in the reports section.
type Booking struct {
	ID       int64  `json:"id"`
	User     string `json:"user"`
	Resource string `json:"resource"`
	Date     string `json:"date"`
	Duration string `json:"duration"`
}

func (b Booking) EntityID() int64 { return b.ID }

func (b Booking) WithID(id int64) Booking {
	b.ID = id
	return b
}

// LabSettings is the single configuration object of the dashboard.
type LabSettings struct {
	LabName   string `json:"lab_name" yaml:"lab_name"`
	OpenTime  string `json:"open_time" yaml:"open_time"`
	CloseTime string `json:"close_time" yaml:"close_time"`
}

// DefaultLabSettings is what the settings screen shows before anything is saved.
func DefaultLabSettings() LabSettings {
	return LabSettings{
		LabName:   "Laboratorio Central",
		OpenTime:  "08:00",
		CloseTime: "18:00",
	}
}

func (s LabSettings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.LabName) == "" {
		problems = append(problems, "lab_name is required")
	}
	open, errOpen := time.Parse("15:04", s.OpenTime)
	if errOpen != nil {
		problems = append(problems, fmt.Sprintf("open_time %q is not HH:MM", s.OpenTime))
	}
	closing, errClose := time.Parse("15:04", s.CloseTime)
	if errClose != nil {
		problems = append(problems, fmt.Sprintf("close_time %q is not HH:MM", s.CloseTime))
	}
	if errOpen == nil && errClose == nil && !open.Before(closing) {
		problems = append(problems, "open_time must be before close_time")
	}
	return problemsError(problems)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func problemsError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
