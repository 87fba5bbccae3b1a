// Package source fetches task records from a tasks listing endpoint.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/tidwall/gjson"

	"github.com/harrisonrobin/taskcal/pkg/model"
)

const (
	DataTypeTasks = "tasks"

	ParamDueDateMin = "due_date_min"
	ParamDueDateMax = "due_date_max"

	maxBodyBytes = 16 << 20
)

var tasksURLPattern = regexp.MustCompile(`api/tasks/`)

// Options describes an event source the way the browser calendar sees it.
type Options struct {
	URL             string            `json:"url"`
	DataType        string            `json:"dataType,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
	Header          map[string]string `json:"-"`
	Editable        *bool             `json:"editable,omitempty"`
	DisableResizing bool              `json:"disableResizing,omitempty"`
}

// Normalize marks o as a tasks source when DataType says so, or when no
// DataType is set and the URL points at the tasks API. Tasks sources default
// to editable with resizing disabled. It reports whether o is a tasks source.
func (o *Options) Normalize() bool {
	if o.DataType != DataTypeTasks && !(o.DataType == "" && tasksURLPattern.MatchString(o.URL)) {
		return false
	}
	o.DataType = DataTypeTasks
	if o.Editable == nil {
		editable := true
		o.Editable = &editable
		o.DisableResizing = true
	}
	return true
}

// Fetcher retrieves task records for a date window.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// NewFetcher normalizes opts and returns a Fetcher. A nil client gets a
// default one with a 30 second timeout.
func NewFetcher(opts Options, client *http.Client) (*Fetcher, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("source URL is empty")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if !opts.Normalize() {
		return nil, fmt.Errorf("source %s is not a tasks source", opts.URL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, opts: opts}, nil
}

// Options returns the normalized source options.
func (f *Fetcher) Options() Options {
	return f.opts
}

// RequestURL builds the listing URL for the window [start, end).
func (f *Fetcher) RequestURL(start, end time.Time) (string, error) {
	u, err := url.Parse(f.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	q := u.Query()
	for k, v := range f.opts.Data {
		q.Set(k, v)
	}
	q.Set(ParamDueDateMin, start.Format(model.DateLayout))
	q.Set(ParamDueDateMax, end.Format(model.DateLayout))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch retrieves the task records due within [start, end).
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time) ([]model.TaskRecord, error) {
	reqURL, err := f.RequestURL(start, end)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.opts.Header {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tasks request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tasks request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks response: %w", err)
	}
	return DecodeRecords(body)
}

// DecodeRecords decodes a tasks listing. It accepts a bare JSON array, null,
// or an envelope with the array under "objects" or "results".
func DecodeRecords(body []byte) ([]model.TaskRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("tasks response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	var raw string
	switch {
	case root.Type == gjson.Null:
		return []model.TaskRecord{}, nil
	case root.IsArray():
		raw = root.Raw
	case root.Get("objects").IsArray():
		raw = root.Get("objects").Raw
	case root.Get("results").IsArray():
		raw = root.Get("results").Raw
	default:
		return nil, fmt.Errorf("unexpected tasks response shape: %s", root.Type)
	}

	records := []model.TaskRecord{}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode task records: %w", err)
	}
	return records, nil
}
