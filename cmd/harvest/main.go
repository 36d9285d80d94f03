// Command harvest runs one harvest from the command line and prints the
// resulting rows to stdout as JSON, CSV, or an iCalendar document.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"church-attendance/internal/ccb"
	"church-attendance/internal/config"
	"church-attendance/internal/harvest"
	"church-attendance/internal/model"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config (optional; env vars also apply)")
		prefix      = flag.String("prefix", "", "group-name prefix to harvest")
		groupIDs    = flag.String("group-ids", "", "comma-separated explicit group ids (overrides -prefix)")
		start       = flag.String("start", "", "range start, YYYY-MM-DD (default: today)")
		end         = flag.String("end", "", "range end, YYYY-MM-DD (default: start + 1 month)")
		attendance  = flag.Bool("attendance", false, "enrich rows with attendance detail")
		attendees   = flag.Bool("attendees", false, "include the attendee roster (implies -attendance)")
		pageSize    = flag.Int("page-size", 0, "pagination page size override")
		concurrency = flag.Int("concurrency", 0, "pagination worker count override")
		timeout     = flag.Duration("timeout", 0, "per-request timeout override")
		format      = flag.String("format", "json", "output format: json, csv, or ics")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ccbCfg := cfg.CCB()
	if *timeout > 0 {
		ccbCfg.Timeout = *timeout
	}
	client, err := ccb.NewClient(ccbCfg)
	if err != nil {
		log.Fatalf("Failed to create upstream client: %v", err)
	}

	q := harvest.Query{
		GroupPrefix:       *prefix,
		IncludeAttendance: *attendance || *attendees,
		IncludeAttendees:  *attendees,
		PageSize:          *pageSize,
		Concurrency:       *concurrency,
	}
	if q.GroupPrefix == "" {
		q.GroupPrefix = cfg.Harvest.GroupPrefix
	}
	for _, id := range strings.Split(*groupIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			q.GroupIDs = append(q.GroupIDs, id)
		}
	}

	if q.Start, err = parseDate(*start); err != nil {
		log.Fatalf("Invalid -start: %v", err)
	}
	if q.End, err = parseDate(*end); err != nil {
		log.Fatalf("Invalid -end: %v", err)
	}
	if q.Start.IsZero() {
		q.Start = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if q.End.IsZero() {
		q.End = q.Start.AddDate(0, 1, 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rows, err := harvest.New(client).Run(ctx, q)
	if err != nil {
		log.Fatalf("Harvest failed: %v", err)
	}
	log.Printf("Harvested %d rows for %s..%s", len(rows), q.Start.Format("2006-01-02"), q.End.Format("2006-01-02"))

	if err := render(rows, *format); err != nil {
		log.Fatalf("Rendering output: %v", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func render(rows []model.LinkRow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		return renderCSV(rows)
	case "ics":
		doc, err := harvest.ICS(rows)
		if err != nil {
			return err
		}
		_, err = fmt.Print(doc)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderCSV(rows []model.LinkRow) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"occur_date", "event_id", "title", "link", "head_count", "did_not_meet"}); err != nil {
		return err
	}
	for _, row := range rows {
		head, didNotMeet := "", ""
		if a := row.Attendance; a != nil {
			if a.HeadCount != nil {
				head = strconv.Itoa(*a.HeadCount)
			}
			if a.DidNotMeet != nil {
				didNotMeet = strconv.FormatBool(*a.DidNotMeet)
			}
		}
		if err := w.Write([]string{row.OccurDate, row.EventID, row.Title, row.Link, head, didNotMeet}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
