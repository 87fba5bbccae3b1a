// Package ics renders calendar events as an iCalendar feed.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/harrisonrobin/taskcal/pkg/model"
)

const DefaultProductID = "-//taskcal//tasks//EN"

// Options controls feed-level properties.
type Options struct {
	ProductID string
	Name      string
	// Stamp is written as DTSTAMP on every event. Zero means time.Now().
	Stamp time.Time
}

// Encode renders events as all-day VEVENTs. Event order is preserved.
func Encode(events []model.CalendarEvent, opts Options) string {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		start := ev.Start.UTC()
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

		vev := cal.AddEvent(ev.ID)
		vev.SetDtStampTime(opts.Stamp)
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		if ev.Color != "" {
			vev.SetProperty(ical.ComponentProperty("COLOR"), ev.Color)
		}
	}

	return cal.Serialize()
}
