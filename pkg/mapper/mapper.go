// Package mapper converts task records into calendar events.
package mapper

import (
	"errors"
	"fmt"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/model"
)

// ErrNoDate is wrapped by MalformedRecordError when a record has neither a
// completion date nor a due date.
var ErrNoDate = errors.New("record has neither complete_date nor due_date")

// MalformedRecordError reports a record that cannot be placed on the calendar.
type MalformedRecordError struct {
	URL   string
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed task record %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("malformed task record %q: %s: %v", e.URL, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// DateParser turns a wire date string into a time.Time.
type DateParser func(string) (time.Time, error)

// Mapper holds the configuration for mapping records into events.
type Mapper struct {
	Palette   colors.Palette
	ParseDate DateParser
}

// New returns a Mapper using p and model.ParseDate.
func New(p colors.Palette) *Mapper {
	return &Mapper{Palette: p, ParseDate: model.ParseDate}
}

// Map converts records into events in input order. now is the reference
// instant for overdue classification. The first malformed record fails the
// whole batch.
func (m *Mapper) Map(records []model.TaskRecord, now time.Time) ([]model.CalendarEvent, error) {
	events := make([]model.CalendarEvent, 0, len(records))
	for _, rec := range records {
		ev, err := m.MapRecord(rec, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// MapRecord converts a single record.
func (m *Mapper) MapRecord(rec model.TaskRecord, now time.Time) (model.CalendarEvent, error) {
	parse := m.ParseDate
	if parse == nil {
		parse = model.ParseDate
	}

	var due, completed time.Time
	if rec.HasDueDate() {
		t, err := parse(rec.DueDate)
		if err != nil {
			return model.CalendarEvent{}, &MalformedRecordError{URL: rec.URL, Field: "due_date", Err: err}
		}
		due = t
	}
	isComplete := rec.HasCompleteDate()
	if isComplete {
		t, err := parse(*rec.CompleteDate)
		if err != nil {
			return model.CalendarEvent{}, &MalformedRecordError{URL: rec.URL, Field: "complete_date", Err: err}
		}
		completed = t
	}
	if !isComplete && !rec.HasDueDate() {
		return model.CalendarEvent{}, &MalformedRecordError{URL: rec.URL, Err: ErrNoDate}
	}

	start := due
	if isComplete {
		start = completed
	}

	return model.CalendarEvent{
		ID:           rec.URL,
		Title:        fmt.Sprintf("Task for %s (%s)", rec.Referral, rec.Type),
		Start:        start,
		Description:  rec.Description,
		Color:        m.Palette.For(colors.Classify(isComplete, due, now)),
		TextColor:    m.Palette.Text,
		SourceRecord: rec,
	}, nil
}
