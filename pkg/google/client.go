package google

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harrisonrobin/taskcal/pkg/auth"
	"github.com/harrisonrobin/taskcal/pkg/index"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Scopes are the OAuth scopes the publisher needs.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// NewClient authorizes with the credentials in configDir and returns a client
// for the calendar whose summary is calendarName.
func NewClient(ctx context.Context, configDir, calendarName string, idx *index.EventIndex) (*CalendarClient, error) {
	httpClient, err := auth.GetClient(ctx, configDir, Scopes)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTP(ctx, httpClient, calendarName, idx)
}

// NewClientWithHTTP is NewClient with an already authorized HTTP client.
func NewClientWithHTTP(ctx context.Context, httpClient *http.Client, calendarName string, idx *index.EventIndex, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	var calendarID string
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			calendarID = item.Id
			break
		}
	}

	if calendarID == "" {
		return nil, fmt.Errorf("calendar '%s' not found", calendarName)
	}

	return NewCalendarClient(srv, calendarID, idx), nil
}
