package google

import (
	"context"
	"fmt"
	"log"

	"github.com/harrisonrobin/taskcal/pkg/index"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
}

// NewCalendarClient creates a new Google Calendar client.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx}
}

// SyncEvent creates a new event or patches the existing one for ev.
func (c *CalendarClient) SyncEvent(ctx context.Context, ev model.CalendarEvent) (*calendar.Event, error) {
	target, err := ConvertEvent(ev)
	if err != nil {
		return nil, err
	}

	var existing *calendar.Event
	// 1. Try local index first
	if c.index != nil {
		if eventID := c.index.Get(ev.ID); eventID != "" {
			existing, err = c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err != nil || existing.Status == "cancelled" {
				existing = nil
			}
		}
	}

	// 2. Fall back to an extended property search
	if existing == nil {
		existing, err = c.GetEventByTaskURL(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing != nil {
		patch := EventNeedsUpdate(existing, target)
		if patch == nil {
			if c.index != nil {
				c.index.Set(ev.ID, existing.Id)
			}
			return existing, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err == nil && c.index != nil {
			c.index.Set(ev.ID, updated.Id)
		}
		return updated, err
	}

	created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
	if err == nil && c.index != nil {
		c.index.Set(ev.ID, created.Id)
	}
	return created, err
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes the event published for taskURL, if any.
func (c *CalendarClient) DeleteEvent(ctx context.Context, taskURL string) error {
	ev, err := c.GetEventByTaskURL(ctx, taskURL)
	if err != nil {
		return err
	}
	if ev != nil {
		if err := c.srv.Events.Delete(c.calendarID, ev.Id).Context(ctx).Do(); err != nil {
			return err
		}
	}
	if c.index != nil {
		c.index.Remove(taskURL)
	}
	return nil
}

// GetEventByTaskURL searches for the event carrying taskURL in its private
// extended properties.
func (c *CalendarClient) GetEventByTaskURL(ctx context.Context, taskURL string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskURLProperty, taskURL)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 1 {
		log.Printf("Warning: %d events found for task %s, using the first", len(events.Items), taskURL)
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
