package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harrisonrobin/taskcal/pkg/overdue"
)

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	scheduler := newScheduler(time.UTC)
	var calls int32
	release := make(chan struct{})
	scheduler.Schedule(cron.Every(time.Second), cron.FuncJob(func() {
		atomic.AddInt32(&calls, 1)
		<-release
	}))

	scheduler.Start()
	time.Sleep(2500 * time.Millisecond)
	close(release)
	<-scheduler.Stop().Done()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected the second tick to be skipped while the first run blocks, got %d runs", got)
	}
}

func TestForgetOverdue(t *testing.T) {
	dir := t.TempDir()
	table, err := overdue.NewTable(dir)
	if err != nil {
		t.Fatal(err)
	}
	table.Update("https://bfrs.example/api/tasks/1/", "g1", "Task for R1 (Burn)", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	table.Update("https://bfrs.example/api/tasks/2/", "g2", "Task for R2 (Burn)", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err := table.Save(); err != nil {
		t.Fatal(err)
	}

	forgetOverdue(dir, "https://bfrs.example/api/tasks/1/")

	reloaded, err := overdue.NewTable(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Entries["https://bfrs.example/api/tasks/1/"]; ok {
		t.Error("Expected forgotten task to be removed from the saved table")
	}
	if _, ok := reloaded.Entries["https://bfrs.example/api/tasks/2/"]; !ok {
		t.Error("Expected other entries to be kept")
	}
}
