package harvest

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"church-attendance/internal/model"
)

// ICS renders harvested rows as an iCalendar document of all-day events.
// Each row becomes one VEVENT whose URL is the row's deep link.
func ICS(rows []model.LinkRow) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//church-attendance//harvest//EN")

	now := time.Now().UTC()
	for _, row := range rows {
		day, err := time.Parse("2006-01-02", row.OccurDate)
		if err != nil {
			return "", fmt.Errorf("row %s has invalid occurrence date %q: %w", row.EventID, row.OccurDate, err)
		}

		ev := cal.AddEvent(fmt.Sprintf("%s-%s@church-attendance", row.EventID, row.OccurDate))
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ev.SetSummary(row.Title)
		ev.SetURL(row.Link)

		if a := row.Attendance; a != nil {
			ev.SetDescription(attendanceDescription(a))
		}
	}

	return cal.Serialize(), nil
}

func attendanceDescription(a *model.AttendanceSummary) string {
	switch {
	case a.DidNotMeet != nil && *a.DidNotMeet:
		return "Did not meet"
	case a.HeadCount != nil:
		return fmt.Sprintf("Head count: %d", *a.HeadCount)
	case a.Topic != nil:
		return *a.Topic
	default:
		return "Attendance recorded"
	}
}
