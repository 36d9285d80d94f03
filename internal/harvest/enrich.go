package harvest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"church-attendance/internal/model"
	"church-attendance/internal/normalize"
)

const (
	// enrichConcurrency is deliberately lower than the pagination default:
	// the attendance endpoint rate-limits harder than the list endpoints.
	enrichConcurrency = 3
	enrichAttempts    = 3
	enrichBaseDelay   = 500 * time.Millisecond
	// enrichDispatchDelay throttles burst rate after each completed item.
	enrichDispatchDelay = 200 * time.Millisecond
)

// Enrich attaches attendance detail to rows in place, best effort. Each row
// gets up to three attempts with exponential backoff; a row that still fails
// is simply left without attendance. One failing occurrence never aborts the
// batch: attendance is supplementary, unlike the fail-closed harvest side.
func (h *Harvester) Enrich(ctx context.Context, rows []model.LinkRow, includeAttendees bool) {
	sem := make(chan struct{}, enrichConcurrency)
	var wg sync.WaitGroup

	for i := range rows {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(row *model.LinkRow) {
			defer func() {
				// Pace dispatch of the next item behind this slot.
				h.sleep(ctx, h.enrichDispatchDelay)
				<-sem
				wg.Done()
			}()

			summary, err := h.fetchAttendance(ctx, row, includeAttendees)
			if err != nil {
				log.Printf("harvest: attendance for event %s on %s skipped: %v", row.EventID, row.OccurDate, err)
				return
			}
			row.Attendance = summary
		}(&rows[i])
	}

	wg.Wait()
}

// fetchAttendance fetches one occurrence's attendance with retry/backoff.
func (h *Harvester) fetchAttendance(ctx context.Context, row *model.LinkRow, includeAttendees bool) (*model.AttendanceSummary, error) {
	params := url.Values{
		"id":         {row.EventID},
		"occurrence": {row.OccurDate},
	}

	var lastErr error
	for attempt := 1; attempt <= enrichAttempts; attempt++ {
		if attempt > 1 {
			delay := h.enrichBaseDelay * (1 << (attempt - 2))
			if !h.sleep(ctx, delay) {
				return nil, ctx.Err()
			}
		}

		tree, err := h.client.Request(ctx, attendanceName, params)
		if err != nil {
			lastErr = err
			continue
		}

		node := tree.Find("response", "attendance")
		if node == nil {
			node = tree.Find("attendance")
		}
		if node == nil {
			lastErr = fmt.Errorf("no attendance element in %s response", attendanceName)
			continue
		}

		s := normalize.Attendance(node, row.EventID, row.OccurDate, includeAttendees)
		return &s, nil
	}

	return nil, lastErr
}

// sleep waits for d, returning false if the context expired first.
func (h *Harvester) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
