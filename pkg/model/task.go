package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used by the tasks API.
const DateLayout = "2006-01-02"

// TaskRecord is a single task as returned by the tasks listing endpoint.
type TaskRecord struct {
	Referral     string  `json:"referral"`
	Type         string  `json:"type"`
	Description  string  `json:"description"`
	DueDate      string  `json:"due_date"`
	CompleteDate *string `json:"complete_date"`
	URL          string  `json:"url"`
}

// HasCompleteDate reports whether the record carries a non-blank completion date.
func (r TaskRecord) HasCompleteDate() bool {
	return r.CompleteDate != nil && strings.TrimSpace(*r.CompleteDate) != ""
}

// HasDueDate reports whether the record carries a non-blank due date.
func (r TaskRecord) HasDueDate() bool {
	return strings.TrimSpace(r.DueDate) != ""
}

// CalendarEvent is the calendar-facing projection of a TaskRecord.
type CalendarEvent struct {
	ID           string
	Title        string
	Start        time.Time
	Location     string
	Description  string
	Color        string
	TextColor    string
	SourceRecord TaskRecord
}

type calendarEventJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Start       string     `json:"start"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Color       string     `json:"color"`
	TextColor   string     `json:"textColor"`
	Task        TaskRecord `json:"task"`
}

// MarshalJSON implements the json.Marshaler interface for CalendarEvent.
func (e CalendarEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(calendarEventJSON{
		ID:          e.ID,
		Title:       e.Title,
		Start:       FormatDate(e.Start),
		Location:    e.Location,
		Description: e.Description,
		Color:       e.Color,
		TextColor:   e.TextColor,
		Task:        e.SourceRecord,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface for CalendarEvent.
func (e *CalendarEvent) UnmarshalJSON(b []byte) error {
	var raw calendarEventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := ParseDate(raw.Start)
	if err != nil {
		return err
	}
	*e = CalendarEvent{
		ID:           raw.ID,
		Title:        raw.Title,
		Start:        start,
		Location:     raw.Location,
		Description:  raw.Description,
		Color:        raw.Color,
		TextColor:    raw.TextColor,
		SourceRecord: raw.Task,
	}
	return nil
}

// ParseDate parses an ISO date ("2024-01-31") as UTC midnight. Full RFC 3339
// timestamps are accepted as well and keep their instant.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date string '%s': expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// FormatDate renders t as an ISO date when it falls on UTC midnight and as
// RFC 3339 otherwise.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(DateLayout)
	}
	return t.Format(time.RFC3339)
}
