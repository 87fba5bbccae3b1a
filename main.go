package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harrisonrobin/taskcal/pkg/auth"
	"github.com/harrisonrobin/taskcal/pkg/config"
	"github.com/harrisonrobin/taskcal/pkg/feed"
	"github.com/harrisonrobin/taskcal/pkg/google"
	"github.com/harrisonrobin/taskcal/pkg/hook"
	"github.com/harrisonrobin/taskcal/pkg/ics"
	"github.com/harrisonrobin/taskcal/pkg/index"
	"github.com/harrisonrobin/taskcal/pkg/mapper"
	"github.com/harrisonrobin/taskcal/pkg/overdue"
	"github.com/harrisonrobin/taskcal/pkg/publish"
	"github.com/harrisonrobin/taskcal/pkg/server"
	"github.com/harrisonrobin/taskcal/pkg/source"
)

func main() {
	// 1. Parse Flags
	configPath := flag.String("config", "", "Path to config.yaml (default ~/.config/taskcal/config.yaml)")
	calendarName := flag.String("calendar", "", "Google Calendar name to publish to (overrides config)")
	setCalendar := flag.String("set-calendar", "", "Set the default Google Calendar name")
	doAuth := flag.Bool("auth", false, "Authenticate with Google Calendar")
	doSync := flag.Bool("sync", false, "Publish the task window to Google Calendar once and exit")
	deleteURL := flag.String("delete", "", "Remove the Google event published for this task url")
	icsPath := flag.String("ics", "", "Write the task window as an iCalendar file ('-' for stdout) and exit")
	doPublish := flag.Bool("publish", false, "While serving, publish to Google Calendar on the sync_cron schedule")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	configDir, err := config.GetConfigDir()
	if err != nil {
		log.Fatalf("could not find configuration directory: %v", err)
	}
	path := *configPath
	if path == "" {
		path = filepath.Join(configDir, "config.yaml")
	} else {
		configDir = filepath.Dir(path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// 2. Handle Set Calendar
	if *setCalendar != "" {
		cfg.Calendar = *setCalendar
		if err := config.Save(path, cfg); err != nil {
			log.Fatalf("Error saving config: %v", err)
		}
		fmt.Printf("Default calendar set to: %s\n", *setCalendar)
		return
	}

	if *calendarName != "" {
		cfg.Calendar = *calendarName
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Handle Authentication
	if *doAuth {
		if err := auth.Login(ctx, configDir, google.Scopes); err != nil {
			log.Fatalf("Authentication failed: %v", err)
		}
		log.Printf("Authentication successful! Token saved to %s", filepath.Join(configDir, auth.TokenFile))
		return
	}

	if *deleteURL != "" {
		evtIndex := openIndex(configDir)
		gClient, err := google.NewClient(ctx, configDir, cfg.Calendar, evtIndex)
		if err != nil {
			log.Fatalf("Error creating Google Calendar client: %v", err)
		}
		if err := gClient.DeleteEvent(ctx, *deleteURL); err != nil {
			log.Fatalf("Error deleting event: %v", err)
		}
		forgetOverdue(configDir, *deleteURL)
		saveIndex(evtIndex)
		return
	}

	// 4. Build the event feed
	events, closeFeed, err := buildFeed(cfg)
	if err != nil {
		log.Fatalf("Error configuring task source: %v", err)
	}
	defer closeFeed()

	loc := cfg.Location()

	if *icsPath != "" {
		if err := writeICS(ctx, cfg, events, *icsPath, time.Now().In(loc)); err != nil {
			log.Fatalf("Error writing iCalendar feed: %v", err)
		}
		return
	}

	if *doSync {
		if err := runPublish(ctx, cfg, configDir, events, time.Now().In(loc)); err != nil {
			log.Fatalf("Publish failed: %v", err)
		}
		return
	}

	// 5. Serve
	if *doPublish {
		scheduler := newScheduler(loc)
		_, err := scheduler.AddFunc(cfg.SyncCron, func() {
			if err := runPublish(ctx, cfg, configDir, events, time.Now().In(loc)); err != nil {
				log.Printf("Warning: scheduled publish failed: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("Error scheduling publish: %v", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		log.Printf("Publishing to %q on schedule %q", cfg.Calendar, cfg.SyncCron)
	}

	srv := &server.Server{
		Events:       events,
		Source:       cfg.SourceOptions(),
		CalendarName: cfg.Calendar,
		BackfillDays: cfg.BackfillDays,
		HorizonDays:  cfg.HorizonDays,
		Location:     loc,
	}
	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server is running on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("HTTP server error: %v", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
}

// newScheduler skips a run while the previous one is still publishing, since
// each run rewrites the index and overdue table.
func newScheduler(loc *time.Location) *cron.Cron {
	return cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
}

// forgetOverdue drops taskURL from the overdue sweep table.
func forgetOverdue(configDir, taskURL string) {
	table, err := overdue.NewTable(configDir)
	if err != nil {
		log.Printf("Warning: failed to initialize overdue sweep table: %v", err)
		return
	}
	table.Remove(taskURL)
	if err := table.Save(); err != nil {
		log.Printf("Warning: failed to save overdue sweep table: %v", err)
	}
}

// buildFeed wires the fetcher, mapper and optional Lua accept hook.
func buildFeed(cfg *config.Config) (*feed.Feed, func(), error) {
	fetcher, err := source.NewFetcher(cfg.SourceOptions(), nil)
	if err != nil {
		return nil, nil, err
	}

	f := &feed.Feed{
		Fetcher: fetcher,
		Mapper:  mapper.New(cfg.Palette),
	}
	closer := func() {}

	if cfg.AcceptScript != "" {
		h, err := hook.LoadFile(cfg.AcceptScript)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load accept script: %w", err)
		}
		f.Accept = h.Accept
		closer = h.Close
	}
	return f, closer, nil
}

func writeICS(ctx context.Context, cfg *config.Config, events *feed.Feed, path string, now time.Time) error {
	p := &publish.Publisher{BackfillDays: cfg.BackfillDays, HorizonDays: cfg.HorizonDays}
	start, end := p.Window(now)
	evs, err := events.Events(ctx, start, end, now)
	if err != nil {
		return err
	}
	out := ics.Encode(evs, ics.Options{Name: cfg.Calendar, Stamp: now})
	if path == "-" {
		_, err := os.Stdout.WriteString(out)
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}

func runPublish(ctx context.Context, cfg *config.Config, configDir string, events *feed.Feed, now time.Time) error {
	sweepTable, err := overdue.NewTable(configDir)
	if err != nil {
		log.Printf("Warning: failed to initialize overdue sweep table: %v", err)
	}

	evtIndex := openIndex(configDir)
	defer saveIndex(evtIndex)

	gClient, err := google.NewClient(ctx, configDir, cfg.Calendar, evtIndex)
	if err != nil {
		return fmt.Errorf("error creating Google Calendar client: %w", err)
	}

	p := &publish.Publisher{
		Source:       events,
		Calendar:     gClient,
		Table:        sweepTable,
		Palette:      cfg.Palette,
		BackfillDays: cfg.BackfillDays,
		HorizonDays:  cfg.HorizonDays,
	}
	res, err := p.Run(ctx, now)
	log.Printf("Published %d events to %q (%d failed, %d marked overdue)", res.Synced, cfg.Calendar, res.Failed, res.Swept)
	return err
}

func openIndex(configDir string) *index.EventIndex {
	evtIndex, err := index.NewEventIndex(configDir)
	if err != nil {
		log.Printf("Warning: failed to initialize event index: %v", err)
		return nil
	}
	return evtIndex
}

func saveIndex(evtIndex *index.EventIndex) {
	if evtIndex == nil {
		return
	}
	if err := evtIndex.Save(); err != nil {
		log.Printf("Warning: failed to save event index: %v", err)
	}
}
