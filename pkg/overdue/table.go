package overdue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const tableFile = "pending_tasks.json"

// Entry is a pending task that has been published to Google Calendar.
type Entry struct {
	TaskURL string    `json:"task_url"`
	GCalID  string    `json:"gcal_id"`
	Summary string    `json:"summary"`
	Due     time.Time `json:"due"`
}

// Table tracks published pending tasks by task URL so they can be recoloured
// once they fall overdue, even if they are no longer inside the sync window.
type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	dirty   bool
}

// NewTable opens the table stored in dir, loading it if it exists.
func NewTable(dir string) (*Table, error) {
	t := &Table{
		Path:    filepath.Join(dir, tableFile),
		Entries: make(map[string]Entry),
	}

	if _, err := os.Stat(t.Path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

func (t *Table) Save() error {
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(t)
	if err == nil {
		t.dirty = false
	}
	return err
}

// Update records a pending task with its due date. A zero due date removes it.
func (t *Table) Update(taskURL, gcalID, summary string, due time.Time) {
	if due.IsZero() {
		t.Remove(taskURL)
		return
	}
	old, exists := t.Entries[taskURL]
	if !exists || !old.Due.Equal(due) || old.GCalID != gcalID || old.Summary != summary {
		t.Entries[taskURL] = Entry{
			TaskURL: taskURL,
			GCalID:  gcalID,
			Summary: summary,
			Due:     due,
		}
		t.dirty = true
	}
}

func (t *Table) Remove(taskURL string) {
	if _, exists := t.Entries[taskURL]; exists {
		delete(t.Entries, taskURL)
		t.dirty = true
	}
}

// Sweep returns entries whose due date is strictly before now and removes
// them. Callers that fail to act on an entry put it back with Restore.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for url, entry := range t.Entries {
		if entry.Due.Before(now) {
			entry.TaskURL = url
			swept = append(swept, entry)
			delete(t.Entries, url)
			t.dirty = true
		}
	}
	return swept
}

// Restore re-adds a swept entry.
func (t *Table) Restore(e Entry) {
	t.Update(e.TaskURL, e.GCalID, e.Summary, e.Due)
}
