// Package server exposes the task feed to the browser calendar over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/harrisonrobin/taskcal/pkg/ics"
	"github.com/harrisonrobin/taskcal/pkg/mapper"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/source"
)

const compactDateLayout = "20060102"

// EventSource produces the events for a window.
type EventSource interface {
	Events(ctx context.Context, start, end, now time.Time) ([]model.CalendarEvent, error)
}

// Server handles the calendar HTTP API.
type Server struct {
	Events       EventSource
	Source       source.Options
	CalendarName string
	BackfillDays int
	HorizonDays  int
	Location     *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Router registers every route on a new mux.Router.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/tasks/events", s.GetEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/tasks/source", s.GetSource).Methods(http.MethodGet)
	router.HandleFunc("/calendar.ics", s.GetICS).Methods(http.MethodGet)
	return router
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// GetEvents handles GET /api/tasks/events.
func (s *Server) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// GetSource handles GET /api/tasks/source.
func (s *Server) GetSource(w http.ResponseWriter, r *http.Request) {
	opts := s.Source
	opts.Normalize()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(opts)
}

// GetICS handles GET /calendar.ics.
func (s *Server) GetICS(w http.ResponseWriter, r *http.Request) {
	events, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write([]byte(ics.Encode(events, ics.Options{Name: s.CalendarName, Stamp: s.now()})))
}

// load resolves the window and fetches its events, writing the error
// response itself when that fails.
func (s *Server) load(w http.ResponseWriter, r *http.Request) ([]model.CalendarEvent, bool) {
	now := s.now()
	start, end, err := s.window(r, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	events, err := s.Events.Events(r.Context(), start, end, now)
	if err != nil {
		var malformed *mapper.MalformedRecordError
		if errors.As(err, &malformed) {
			log.Printf("Warning: %v", err)
		} else {
			log.Printf("Warning: failed to load events: %v", err)
		}
		http.Error(w, "Failed to load tasks: "+err.Error(), http.StatusBadGateway)
		return nil, false
	}
	return events, true
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// window reads start and end from the query, defaulting each from the
// configured backfill and horizon around today.
func (s *Server) window(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -s.BackfillDays)
	end := today.AddDate(0, 0, s.HorizonDays+1)

	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		t, err := ParseTimeParam(v)
		if err != nil {
			return start, end, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := ParseTimeParam(v)
		if err != nil {
			return start, end, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, errors.New("end is before start")
	}
	return start, end, nil
}

// ParseTimeParam accepts an ISO date, a compact YYYYMMDD date, an RFC 3339
// timestamp or unix seconds.
func ParseTimeParam(v string) (time.Time, error) {
	if t, err := model.ParseDate(v); err == nil {
		return t, nil
	}
	if len(v) == len(compactDateLayout) {
		if t, err := time.Parse(compactDateLayout, v); err == nil {
			return t, nil
		}
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date, timestamp or unix time", v)
	}
	return time.Unix(secs, 0).UTC(), nil
}
