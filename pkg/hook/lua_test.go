package hook

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/model"
)

func sampleEvents() []model.CalendarEvent {
	return []model.CalendarEvent{
		{
			ID:           "a",
			Title:        "Task for R1 (Burn)",
			Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Color:        "#F2DEDE",
			TextColor:    "#000000",
			SourceRecord: model.TaskRecord{Referral: "R1", Type: "Burn", URL: "a"},
		},
		{
			ID:           "b",
			Title:        "Task for R2 (Inspect)",
			Start:        time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
			Color:        "#D9EDF7",
			TextColor:    "#000000",
			SourceRecord: model.TaskRecord{Referral: "R2", Type: "Inspect", URL: "b"},
		},
	}
}

func mustLoad(t *testing.T, src string) *LuaAccept {
	t.Helper()
	a, err := LoadString("test.lua", src)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestAcceptNilKeepsEvents(t *testing.T) {
	a := mustLoad(t, `function accept(events) return nil end`)
	if got := a.Accept(sampleEvents()); got != nil {
		t.Errorf("Expected nil, got %+v", got)
	}
}

func TestAcceptFilterAndModify(t *testing.T) {
	a := mustLoad(t, `
function accept(events)
  local out = {}
  for i, ev in ipairs(events) do
    if ev.color == "#F2DEDE" then
      ev.title = "! " .. ev.title
      table.insert(out, ev)
    end
  end
  return out
end`)

	got := a.Accept(sampleEvents())
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	if got[0].Title != "! Task for R1 (Burn)" {
		t.Errorf("Unexpected title %q", got[0].Title)
	}
	if got[0].SourceRecord.Referral != "R1" {
		t.Errorf("Expected source record to be carried over, got %+v", got[0].SourceRecord)
	}
	if !got[0].Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start %v", got[0].Start)
	}
}

func TestAcceptNewEvent(t *testing.T) {
	a := mustLoad(t, `
function accept(events)
  table.insert(events, {id = "extra", title = "Fire season starts", start = "2024-12-01"})
  return events
end`)

	got := a.Accept(sampleEvents())
	if len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(got))
	}
	if got[2].ID != "extra" || !got[2].Start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected new event %+v", got[2])
	}
}

func TestAcceptErrorsPassThrough(t *testing.T) {
	scripts := map[string]string{
		"runtime error":   `function accept(events) error("boom") end`,
		"wrong type":      `function accept(events) return 42 end`,
		"missing start":   `function accept(events) return {{id = "new"}} end`,
		"bad start":       `function accept(events) return {{id = "a", start = "soon"}} end`,
		"entry not table": `function accept(events) return {"a"} end`,
	}
	for name, src := range scripts {
		t.Run(name, func(t *testing.T) {
			a := mustLoad(t, src)
			if got := a.Accept(sampleEvents()); got != nil {
				t.Errorf("Expected nil on script error, got %+v", got)
			}
		})
	}
}

func TestScriptLibrariesRestricted(t *testing.T) {
	a := mustLoad(t, `
function accept(events)
  if os ~= nil or io ~= nil or dofile ~= nil or loadfile ~= nil or require ~= nil then
    error("unrestricted library")
  end
  local out = {}
  for _, ev in ipairs(events) do
    ev.title = string.upper(ev.title) .. math.floor(1.5)
    table.insert(out, ev)
  end
  return out
end`)
	got := a.Accept(sampleEvents())
	if len(got) != 2 {
		t.Fatalf("Expected both events back, got %+v", got)
	}
	if got[0].Title != "TASK FOR R1 (BURN)1" {
		t.Errorf("Expected string and math to be available, got title %q", got[0].Title)
	}
}

func TestLoadRequiresAcceptFunction(t *testing.T) {
	if _, err := LoadString("empty.lua", `x = 1`); err == nil {
		t.Error("Expected error when accept is not defined")
	}
	if _, err := LoadString("broken.lua", `function accept(`); err == nil {
		t.Error("Expected syntax error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accept.lua")
	if err := os.WriteFile(path, []byte(`function accept(events) return {} end`), 0600); err != nil {
		t.Fatal(err)
	}
	a, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	defer a.Close()

	got := a.Accept(sampleEvents())
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty replacement, got %#v", got)
	}
}

func TestAcceptConcurrent(t *testing.T) {
	a := mustLoad(t, `function accept(events) return events end`)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := a.Accept(sampleEvents()); len(got) != 2 {
				t.Errorf("Expected 2 events, got %d", len(got))
			}
		}()
	}
	wg.Wait()
}
