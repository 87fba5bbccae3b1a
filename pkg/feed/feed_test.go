package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/mapper"
	"github.com/harrisonrobin/taskcal/pkg/model"
)

type fakeFetcher struct {
	records    []model.TaskRecord
	err        error
	start, end time.Time
}

func (f *fakeFetcher) Fetch(ctx context.Context, start, end time.Time) ([]model.TaskRecord, error) {
	f.start, f.end = start, end
	return f.records, f.err
}

var (
	winStart = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	winEnd   = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	now      = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func newFeed(fetcher Fetcher, accept AcceptFunc) *Feed {
	return &Feed{Fetcher: fetcher, Mapper: mapper.New(colors.DefaultPalette()), Accept: accept}
}

func TestEvents(t *testing.T) {
	ff := &fakeFetcher{records: []model.TaskRecord{
		{Referral: "R1", Type: "Burn", DueDate: "2024-05-10", URL: "a"},
		{Referral: "R2", Type: "Burn", DueDate: "2024-06-10", URL: "b"},
	}}
	events, err := newFeed(ff, nil).Events(context.Background(), winStart, winEnd, now)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if !ff.start.Equal(winStart) || !ff.end.Equal(winEnd) {
		t.Errorf("Fetcher got window %v - %v", ff.start, ff.end)
	}
	if len(events) != 2 || events[0].Color != colors.OverdueColor || events[1].Color != colors.PendingColor {
		t.Errorf("Unexpected events: %+v", events)
	}
}

func TestEventsAcceptOverride(t *testing.T) {
	ff := &fakeFetcher{records: []model.TaskRecord{{Referral: "R1", Type: "Burn", DueDate: "2024-05-10", URL: "a"}}}

	var seen int
	replacement := []model.CalendarEvent{{ID: "replaced"}}
	events, err := newFeed(ff, func(evs []model.CalendarEvent) []model.CalendarEvent {
		seen = len(evs)
		return replacement
	}).Events(context.Background(), winStart, winEnd, now)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if seen != 1 {
		t.Errorf("Expected accept to see 1 event, saw %d", seen)
	}
	if len(events) != 1 || events[0].ID != "replaced" {
		t.Errorf("Expected replacement to win, got %+v", events)
	}
}

func TestEventsAcceptPassThrough(t *testing.T) {
	ff := &fakeFetcher{records: []model.TaskRecord{{Referral: "R1", Type: "Burn", DueDate: "2024-05-10", URL: "a"}}}
	events, err := newFeed(ff, func(evs []model.CalendarEvent) []model.CalendarEvent {
		return nil
	}).Events(context.Background(), winStart, winEnd, now)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Errorf("Expected mapper output to be kept, got %+v", events)
	}
}

func TestEventsAcceptEmptyReplacement(t *testing.T) {
	ff := &fakeFetcher{records: []model.TaskRecord{{Referral: "R1", Type: "Burn", DueDate: "2024-05-10", URL: "a"}}}
	events, err := newFeed(ff, func(evs []model.CalendarEvent) []model.CalendarEvent {
		return []model.CalendarEvent{}
	}).Events(context.Background(), winStart, winEnd, now)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected empty replacement to win, got %+v", events)
	}
}

func TestEventsErrors(t *testing.T) {
	fetchErr := errors.New("upstream down")
	if _, err := newFeed(&fakeFetcher{err: fetchErr}, nil).Events(context.Background(), winStart, winEnd, now); !errors.Is(err, fetchErr) {
		t.Errorf("Expected fetch error, got %v", err)
	}

	called := false
	ff := &fakeFetcher{records: []model.TaskRecord{{URL: "broken"}}}
	_, err := newFeed(ff, func(evs []model.CalendarEvent) []model.CalendarEvent {
		called = true
		return evs
	}).Events(context.Background(), winStart, winEnd, now)
	var mre *mapper.MalformedRecordError
	if !errors.As(err, &mre) || mre.URL != "broken" {
		t.Errorf("Expected MalformedRecordError for broken, got %v", err)
	}
	if called {
		t.Error("Accept must not run when mapping fails")
	}

	if _, err := newFeed(&fakeFetcher{}, nil).Events(context.Background(), winEnd, winStart, now); err == nil {
		t.Error("Expected error for inverted window")
	}
}
