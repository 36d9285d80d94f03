package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"church-attendance/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func stubLink(eventID string, occur time.Time) string {
	return "link://" + eventID + "/" + occur.Format("20060102")
}

func TestFilterIntervalBoundaries(t *testing.T) {
	rangeStart, rangeEnd := day(2025, 8, 1), day(2025, 8, 31)

	events := []model.Event{
		{ID: "1", Name: "inside", Occurrences: []model.Occurrence{{Start: at(2025, 8, 5, 10)}}},
		{ID: "2", Name: "on range start", Occurrences: []model.Occurrence{{Start: at(2025, 8, 1, 9)}}},
		{ID: "3", Name: "on range end", Occurrences: []model.Occurrence{{Start: at(2025, 8, 31, 23)}}},
		{ID: "4", Name: "after range", Occurrences: []model.Occurrence{{Start: at(2025, 9, 2, 10)}}},
		{ID: "5", Name: "before range", Occurrences: []model.Occurrence{{Start: at(2025, 7, 31, 10)}}},
	}

	rows := Filter(events, nil, rangeStart, rangeEnd, stubLink)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.EventID)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)
}

func TestFilterMultiDayOverlap(t *testing.T) {
	// An occurrence spanning into the range counts, even if it starts before.
	events := []model.Event{
		{ID: "1", Name: "spans in", Occurrences: []model.Occurrence{
			{Start: at(2025, 7, 30, 9), End: timeP(at(2025, 8, 2, 17))},
		}},
		{ID: "2", Name: "ends before", Occurrences: []model.Occurrence{
			{Start: at(2025, 7, 20, 9), End: timeP(at(2025, 7, 25, 17))},
		}},
		{ID: "3", Name: "end precedes start", Occurrences: []model.Occurrence{
			// Corrupt interval: treated as a point at the start date.
			{Start: at(2025, 8, 10, 9), End: timeP(at(2025, 8, 1, 9))},
		}},
	}

	rows := Filter(events, nil, day(2025, 8, 1), day(2025, 8, 31), stubLink)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].EventID)
	assert.Equal(t, "2025-07-30", rows[0].OccurDate)
	assert.Equal(t, "3", rows[1].EventID)
}

func TestFilterGroupMembership(t *testing.T) {
	occ := []model.Occurrence{{Start: at(2025, 8, 5, 10)}}
	events := []model.Event{
		{ID: "1", GroupID: "170", Occurrences: occ},
		{ID: "2", GroupID: "285", Occurrences: occ},
		{ID: "3", GroupID: "", Occurrences: occ},
	}

	rows := Filter(events, map[string]bool{"170": true}, day(2025, 8, 1), day(2025, 8, 31), stubLink)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].EventID)

	// No group filter: everything in range is included, grouped or not.
	rows = Filter(events, nil, day(2025, 8, 1), day(2025, 8, 31), stubLink)
	assert.Len(t, rows, 3)
}

func TestFilterDeduplicates(t *testing.T) {
	// Pagination over-fetch can hand the same event in twice; occurrences
	// collapse on (eventID, occurDate), first seen wins.
	dup := model.Event{ID: "1", Name: "first seen", Occurrences: []model.Occurrence{
		{Start: at(2025, 8, 5, 10)},
		{Start: at(2025, 8, 5, 19)}, // same calendar date
		{Start: at(2025, 8, 12, 10)},
	}}
	later := dup
	later.Name = "second copy"

	rows := Filter([]model.Event{dup, later}, nil, day(2025, 8, 1), day(2025, 8, 31), stubLink)
	require.Len(t, rows, 2)

	seen := map[string]bool{}
	for _, r := range rows {
		key := r.EventID + "|" + r.OccurDate
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
		assert.Equal(t, "first seen", r.Title)
	}
}

func TestFilterSkipsZeroStart(t *testing.T) {
	events := []model.Event{
		{ID: "1", Occurrences: []model.Occurrence{{}}},
	}
	rows := Filter(events, nil, day(2025, 8, 1), day(2025, 8, 31), stubLink)
	assert.Empty(t, rows)
}

func timeP(t time.Time) *time.Time { return &t }
