package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/source"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != DefaultCalendar || cfg.Listen != DefaultListen {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.Palette != colors.DefaultPalette() {
		t.Errorf("Expected default palette, got %+v", cfg.Palette)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `calendar: Fire Tasks
timezone: Australia/Perth
source:
  url: https://bfrs.example/api/tasks/
  data:
    format: json
  headers:
    Authorization: Token abc
palette:
  overdue: "#FF0000"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != "Fire Tasks" || cfg.Timezone != "Australia/Perth" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.Source.URL != "https://bfrs.example/api/tasks/" || cfg.Source.Data["format"] != "json" {
		t.Errorf("Unexpected source: %+v", cfg.Source)
	}
	if cfg.Source.Headers["Authorization"] != "Token abc" {
		t.Errorf("Expected header to load, got %+v", cfg.Source.Headers)
	}
	if cfg.Palette.Overdue != "#FF0000" || cfg.Palette.Pending != colors.PendingColor {
		t.Errorf("Expected overdue override with pending default, got %+v", cfg.Palette)
	}
	if cfg.BackfillDays != DefaultBackfillDays || cfg.SyncCron != DefaultSyncCron {
		t.Errorf("Expected defaults for unset fields, got %+v", cfg)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Calendar != DefaultCalendar {
		t.Errorf("Expected default calendar, got %q", cfg.Calendar)
	}
}

func TestLoadUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("calender: typo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Calendar = "Work"
	cfg.HorizonDays = 14
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Calendar != "Work" || loaded.HorizonDays != 14 {
		t.Errorf("Unexpected reloaded config: %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"bad colour":   func(c *Config) { c.Palette.Pending = "blue" },
		"bad cron":     func(c *Config) { c.SyncCron = "every minute" },
		"bad timezone": func(c *Config) { c.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSourceOptionsDataType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `source:
  url: https://bfrs.example/api/v1/task-list/
  data_type: tasks
  headers:
    Authorization: Token abc
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opts := cfg.SourceOptions()
	if opts.DataType != source.DataTypeTasks || opts.Header["Authorization"] != "Token abc" {
		t.Errorf("Unexpected source options %+v", opts)
	}
	if _, err := source.NewFetcher(opts, nil); err != nil {
		t.Errorf("Expected data_type to mark the source as tasks: %v", err)
	}

	cfg.Source.DataType = ""
	if _, err := source.NewFetcher(cfg.SourceOptions(), nil); err == nil {
		t.Error("Expected a URL without api/tasks/ and no data_type to be rejected")
	}
}
