// Package publish mirrors the task feed into a Google Calendar.
package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/overdue"
)

// Calendar is the subset of google.CalendarClient used for publishing.
type Calendar interface {
	SyncEvent(ctx context.Context, ev model.CalendarEvent) (*calendar.Event, error)
	PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error)
}

// EventSource produces the events to publish.
type EventSource interface {
	Events(ctx context.Context, start, end, now time.Time) ([]model.CalendarEvent, error)
}

type Publisher struct {
	Source       EventSource
	Calendar     Calendar
	Table        *overdue.Table
	Palette      colors.Palette
	BackfillDays int
	HorizonDays  int
}

// Result counts what a Run did.
type Result struct {
	Synced int
	Failed int
	Swept  int
}

// Window returns the fetch window around now, starting at midnight.
func (p *Publisher) Window(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.AddDate(0, 0, -p.BackfillDays), day.AddDate(0, 0, p.HorizonDays+1)
}

// Run recolours pending events that have fallen overdue, then syncs every
// event in the window. Per-event failures are logged and counted.
func (p *Publisher) Run(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	palette := p.Palette.WithDefaults()

	if p.Table != nil {
		overdueID := colors.GoogleColorID(palette.Overdue)
		for _, entry := range p.Table.Sweep(now) {
			if _, err := p.Calendar.PatchEvent(ctx, entry.GCalID, &calendar.Event{ColorId: overdueID}); err != nil {
				log.Printf("Warning: could not mark %q overdue, will retry: %v", entry.Summary, err)
				p.Table.Restore(entry)
				continue
			}
			res.Swept++
		}
	}

	start, end := p.Window(now)
	events, err := p.Source.Events(ctx, start, end, now)
	if err != nil {
		p.save()
		return res, fmt.Errorf("failed to load events: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			p.save()
			return res, err
		}
		gev, err := p.Calendar.SyncEvent(ctx, ev)
		if err != nil {
			log.Printf("Warning: failed to sync %q: %v", ev.Title, err)
			res.Failed++
			continue
		}
		res.Synced++

		if p.Table == nil {
			continue
		}
		if ev.Color == palette.Pending {
			p.Table.Update(ev.ID, gev.Id, ev.Title, ev.Start)
		} else {
			p.Table.Remove(ev.ID)
		}
	}

	if err := p.save(); err != nil {
		return res, fmt.Errorf("failed to save overdue table: %w", err)
	}
	return res, nil
}

func (p *Publisher) save() error {
	if p.Table == nil {
		return nil
	}
	return p.Table.Save()
}
