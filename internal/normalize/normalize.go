// Package normalize converts the upstream's raw XML trees into canonical
// model records. The upstream schema has evolved over the years: the same
// concept may live in an attribute, a child element, or a legacy child name
// depending on the endpoint and the record's age. Each logical field is
// therefore resolved through an ordered candidate list, first present wins.
package normalize

import (
	"strings"
	"time"

	"church-attendance/internal/ccb"
	"church-attendance/internal/model"
)

// field resolves a logical field through an ordered candidate list.
// A candidate starting with "@" names an attribute; anything else names a
// child element whose trimmed text is used. The first non-empty hit wins.
func field(n *ccb.Node, candidates ...string) string {
	if n == nil {
		return ""
	}
	for _, cand := range candidates {
		var v string
		if strings.HasPrefix(cand, "@") {
			v = n.Attr(cand[1:])
		} else {
			v = n.ChildText(cand)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// timeLayouts are tried in order when parsing upstream date/time fields.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses an upstream date/time value. A value that matches no
// known layout is treated as absent, not as an error.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func timePtr(s string) *time.Time {
	if t, ok := parseTime(s); ok {
		return &t
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Group normalizes a raw group node. It returns ok=false when the resolved
// name is empty: nameless groups cannot take part in prefix filtering and
// are dropped silently.
func Group(n *ccb.Node) (model.Group, bool) {
	g := model.Group{
		ID:   field(n, "@id", "@ccb_id", "id", "group_id"),
		Name: field(n, "name", "group_name", "@name"),
	}
	if g.Name == "" {
		return model.Group{}, false
	}
	return g, true
}

// Event normalizes a raw event node. When the node carries no explicit
// occurrence list, the event's own start/end stand in as its single
// occurrence.
func Event(n *ccb.Node) model.Event {
	ev := model.Event{
		ID:       field(n, "@id", "@ccb_id", "id", "event_id"),
		Name:     field(n, "name", "event_name", "@name"),
		Timezone: strPtr(field(n, "timezone", "tz")),
		Created:  timePtr(field(n, "created", "created_date")),
		Modified: timePtr(field(n, "modified", "modified_date")),
	}

	if start, ok := parseTime(field(n, "start_datetime", "start_date", "start")); ok {
		ev.Start = start
	}
	ev.End = timePtr(field(n, "end_datetime", "end_date", "end"))

	ev.GroupID = field(n, "@group_id", "group_id")
	ev.GroupName = field(n, "group_name")
	if g := n.Child("group"); g != nil {
		if ev.GroupID == "" {
			ev.GroupID = field(g, "@id", "@ccb_id", "id")
		}
		if ev.GroupName == "" {
			ev.GroupName = field(g, "name", "@name")
		}
	}

	ev.Occurrences = occurrences(n)
	if len(ev.Occurrences) == 0 && !ev.Start.IsZero() {
		ev.Occurrences = []model.Occurrence{{Start: ev.Start, End: ev.End}}
	}

	return ev
}

// occurrences extracts the explicit occurrence list, tolerating both the
// wrapped (<occurrences><occurrence>...) and the flat (<occurrence>...)
// nesting the upstream has used.
func occurrences(n *ccb.Node) []model.Occurrence {
	raw := n.FindAll("occurrences", "occurrence")
	if len(raw) == 0 {
		raw = n.FindAll("occurrence")
	}

	var out []model.Occurrence
	for _, o := range raw {
		start, ok := parseTime(field(o, "start_datetime", "start_date", "date", "start", "@start"))
		if !ok {
			// Some records are bare text dates: <occurrence>2025-08-05</occurrence>.
			start, ok = parseTime(o.TrimmedText())
		}
		if !ok {
			continue
		}
		out = append(out, model.Occurrence{
			Start: start,
			End:   timePtr(field(o, "end_datetime", "end_date", "end", "@end")),
		})
	}
	return out
}

// Attendance normalizes a raw attendance node for one event occurrence.
// includeAttendees controls whether the roster is carried at all.
func Attendance(n *ccb.Node, eventID, occurrence string, includeAttendees bool) model.AttendanceSummary {
	s := model.AttendanceSummary{
		EventID:        eventID,
		Occurrence:     occurrence,
		Title:          strPtr(field(n, "name", "title", "event_name")),
		Topic:          strPtr(field(n, "topic")),
		Notes:          strPtr(field(n, "notes")),
		PrayerRequests: strPtr(field(n, "prayer_requests", "prayerrequests")),
		Info:           strPtr(field(n, "info")),
	}

	if v := field(n, "did_not_meet", "@did_not_meet"); v != "" {
		b := v == "true" || v == "1"
		s.DidNotMeet = &b
	}
	if v := field(n, "head_count", "headcount", "head_cnt"); v != "" {
		if count, ok := parseCount(v); ok {
			s.HeadCount = &count
		}
	}

	if includeAttendees {
		raw := n.FindAll("attendees", "attendee")
		if len(raw) == 0 {
			raw = n.FindAll("attendee")
		}
		for _, a := range raw {
			s.Attendees = append(s.Attendees, model.Attendee{
				ID:   field(a, "@id", "@ccb_id", "id"),
				Name: field(a, "name", "full_name", "first_last"),
			})
		}
	}

	return s
}

// parseCount parses a non-negative integer; anything else is absent.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
