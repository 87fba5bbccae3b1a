package google

import (
	"fmt"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// TaskURLProperty is the private extended property holding the task URL.
const TaskURLProperty = "task_url"

// ConvertEvent builds an all-day Google Calendar event for ev.
func ConvertEvent(ev model.CalendarEvent) (*calendar.Event, error) {
	if ev.ID == "" {
		return nil, fmt.Errorf("could not convert event without id")
	}
	if ev.Start.IsZero() {
		return nil, fmt.Errorf("event %s has no start date", ev.ID)
	}

	start := ev.Start.UTC()
	end := start.AddDate(0, 0, 1)

	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		ColorId:     colors.GoogleColorID(ev.Color),
		Start: &calendar.EventDateTime{
			Date: start.Format(model.DateLayout),
		},
		End: &calendar.EventDateTime{
			Date: end.Format(model.DateLayout),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskURLProperty: ev.ID,
			},
		},
	}, nil
}

// EventNeedsUpdate returns a patch if the fields we manage differ between the
// event already in the calendar and the freshly converted target, or nil.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if eventDate(existing.Start) != eventDate(target.Start) || eventDate(existing.End) != eventDate(target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func eventDate(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	return dt.DateTime
}
