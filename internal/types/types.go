package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ISOMillis is the wire layout for reservation timestamps sent to the API.
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

// Timestamp marshals as ISO-8601 UTC with millisecond precision and accepts
// any RFC3339 variant the API returns, including values without a zone.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(ISOMillis))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.String(), nil
}

// String renders the timestamp in its wire form.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ISOMillis)
}

// ParseTimestamp parses the layouts seen from the API and from form inputs
// (datetime-local values carry no zone and are taken as UTC).
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Reservation is a lab reservation as returned by the remote API.
type Reservation struct {
	ID         int64     `json:"id" yaml:"id"`
	LabName    string    `json:"lab_name" yaml:"lab_name"`
	ReservedBy string    `json:"reserved_by" yaml:"reserved_by"`
	Purpose    string    `json:"purpose" yaml:"purpose"`
	StartTime  Timestamp `json:"start_time" yaml:"start_time"`
	Active     bool      `json:"active" yaml:"active"`
	CreatedAt  Timestamp `json:"created_at" yaml:"created_at" table:"wide"`
	OwnerID    int64     `json:"owner_id" yaml:"owner_id" table:"wide"`
}

func (r Reservation) EntityID() int64 { return r.ID }

func (r Reservation) WithID(id int64) Reservation {
	r.ID = id
	return r
}

// Input returns the writable part of the reservation.
func (r Reservation) Input() ReservationInput {
	return ReservationInput{
		LabName:    r.LabName,
		ReservedBy: r.ReservedBy,
		Purpose:    r.Purpose,
		StartTime:  r.StartTime,
		Active:     r.Active,
	}
}

// ReservationInput is the create/update payload. The server assigns id,
// created_at and owner_id.
type ReservationInput struct {
	LabName    string    `json:"lab_name" yaml:"lab_name"`
	ReservedBy string    `json:"reserved_by" yaml:"reserved_by"`
	Purpose    string    `json:"purpose" yaml:"purpose"`
	StartTime  Timestamp `json:"start_time" yaml:"start_time"`
	Active     bool      `json:"active" yaml:"active"`
}

// Validate mirrors the server-side field constraints so obvious mistakes are
// reported before a round trip.
func (in ReservationInput) Validate() error {
	var problems []string
	if n := utf8.RuneCountInString(strings.TrimSpace(in.LabName)); n < 3 || n > 150 {
		problems = append(problems, "lab_name must be 3-150 characters")
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.ReservedBy)); n < 3 || n > 150 {
		problems = append(problems, "reserved_by must be 3-150 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Purpose)) < 3 {
		problems = append(problems, "purpose must be at least 3 characters")
	}
	if in.StartTime.IsZero() {
		problems = append(problems, "start_time is required")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ReservationFilter narrows a reservation listing.
type ReservationFilter struct {
	LabName   string
	StartDate time.Time
}

// PopularHour is one bucket of the popular-times analysis.
type PopularHour struct {
	Hour  int `json:"hour" yaml:"hour"`
	Count int `json:"count" yaml:"count"`
}

// UnmarshalJSON accepts the hour as an integer or as a SQL numeric rendered
// with a fraction (14.0).
func (h *PopularHour) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hour  float64 `json:"hour"`
		Count float64 `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Hour = int(raw.Hour)
	h.Count = int(raw.Count)
	return nil
}

// PopularLab counts reservations per lab.
type PopularLab struct {
	LabName string `json:"lab_name" yaml:"lab_name"`
	Count   int    `json:"count" yaml:"count"`
}

// PopularTimes is the response of the popular-times analysis endpoint.
type PopularTimes struct {
	PopularHours []PopularHour `json:"popular_hours" yaml:"popular_hours"`
	PopularLabs  []PopularLab  `json:"popular_labs" yaml:"popular_labs"`
}

// AuditEntry is a single record of the remote audit log.
type AuditEntry struct {
	ID          int64     `json:"id" yaml:"id"`
	Timestamp   Timestamp `json:"timestamp" yaml:"timestamp"`
	UserID      int64     `json:"user_id" yaml:"user_id"`
	Action      string    `json:"action" yaml:"action"`
	TargetModel string    `json:"target_model" yaml:"target_model"`
	TargetID    int64     `json:"target_id" yaml:"target_id"`
	Details     *string   `json:"details,omitempty" yaml:"details,omitempty" table:"wide"`
}

// ValidationError lists every field problem found in a form.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}
