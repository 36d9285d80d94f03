// Command server serves the harvest dashboard and its JSON endpoint.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"church-attendance/internal/cache"
	"church-attendance/internal/ccb"
	"church-attendance/internal/config"
	"church-attendance/internal/harvest"
	"church-attendance/internal/web"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := ccb.NewClient(cfg.CCB())
	if err != nil {
		log.Fatalf("Failed to create upstream client: %v", err)
	}

	c, err := cache.New(cfg.Server.CacheDir, cfg.CacheTTL())
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	harvester := harvest.New(client)
	handler := web.New(harvester, c)

	// Periodically re-harvest the configured default query so dashboard
	// loads hit a warm cache.
	if cfg.Server.RefreshCron != "" && cfg.Harvest.GroupPrefix != "" {
		sched := cron.New()
		_, err := sched.AddFunc(cfg.Server.RefreshCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			q := harvest.Query{
				GroupPrefix:       cfg.Harvest.GroupPrefix,
				Start:             time.Now().UTC().Truncate(24 * time.Hour),
				IncludeAttendance: cfg.Harvest.Attendance,
				IncludeAttendees:  cfg.Harvest.Attendees,
			}
			q.End = q.Start.AddDate(0, 1, 0)

			if err := handler.Refresh(ctx, q); err != nil {
				log.Printf("Scheduled refresh failed: %v", err)
				return
			}
			log.Printf("Scheduled refresh completed for prefix %q", q.GroupPrefix)
		})
		if err != nil {
			log.Fatalf("Invalid refresh schedule %q: %v", cfg.Server.RefreshCron, err)
		}
		sched.Start()
		log.Printf("Scheduled refresh: %s", cfg.Server.RefreshCron)
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	log.Printf("Cache directory: %s (TTL %s)", cfg.Server.CacheDir, cfg.CacheTTL())

	if err := http.ListenAndServe(":"+cfg.Server.Port, handler.Routes()); err != nil {
		log.Fatal(err)
	}
}

func configPath() string {
	// The config file is optional; env vars alone are enough to run.
	return os.Getenv("CONFIG_PATH")
}
