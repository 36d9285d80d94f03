package harvest

import (
	"time"

	"church-attendance/internal/model"
)

// rowKey is the composite identity of an output row.
type rowKey struct {
	eventID   string
	occurDate string
}

// Filter restricts event occurrences to those overlapping [start, end]
// (inclusive at both boundaries, compared at calendar-date precision) and
// belonging to the target group set. A nil groupIDs set disables group
// filtering; a non-nil set admits only events whose resolved group id is a
// member, which excludes events with no group id at all.
//
// Duplicates produced by the paginator's accepted over-fetch are reduced
// here on (eventID, occurDate), first seen wins. Output order follows input
// order, which is not deterministic across pagination workers; callers
// needing stable output sort afterwards.
func Filter(events []model.Event, groupIDs map[string]bool, start, end time.Time, link func(eventID string, occur time.Time) string) []model.LinkRow {
	rangeStart := dateOnly(start)
	rangeEnd := dateOnly(end)

	seen := make(map[rowKey]bool)
	var rows []model.LinkRow

	for _, ev := range events {
		if groupIDs != nil && !groupIDs[ev.GroupID] {
			continue
		}
		for _, occ := range ev.Occurrences {
			if occ.Start.IsZero() {
				continue
			}
			occStart := dateOnly(occ.Start)
			occEnd := occStart
			if occ.End != nil && !occ.End.Before(occ.Start) {
				occEnd = dateOnly(*occ.End)
			}
			if occEnd.Before(rangeStart) || occStart.After(rangeEnd) {
				continue
			}

			key := rowKey{eventID: ev.ID, occurDate: occStart.Format("2006-01-02")}
			if seen[key] {
				continue
			}
			seen[key] = true

			rows = append(rows, model.LinkRow{
				EventID:   ev.ID,
				Title:     ev.Name,
				OccurDate: key.occurDate,
				Link:      link(ev.ID, occ.Start),
			})
		}
	}

	return rows
}

// dateOnly truncates a timestamp to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
