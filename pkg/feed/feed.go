// Package feed ties task fetching, event mapping and the accept override together.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/mapper"
	"github.com/harrisonrobin/taskcal/pkg/model"
)

// Fetcher retrieves task records due within [start, end).
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]model.TaskRecord, error)
}

// AcceptFunc receives the mapped events. A non-nil return value replaces them.
type AcceptFunc func(events []model.CalendarEvent) []model.CalendarEvent

// Feed produces calendar events for a date window.
type Feed struct {
	Fetcher Fetcher
	Mapper  *mapper.Mapper
	Accept  AcceptFunc
}

// Events fetches the records for [start, end), maps them against now and
// applies the accept override.
func (f *Feed) Events(ctx context.Context, start, end, now time.Time) ([]model.CalendarEvent, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("window end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	records, err := f.Fetcher.Fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	events, err := f.Mapper.Map(records, now)
	if err != nil {
		return nil, err
	}

	if f.Accept != nil {
		if replaced := f.Accept(events); replaced != nil {
			return replaced, nil
		}
	}
	return events, nil
}
