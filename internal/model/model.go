package model

import "time"

// Group is a roster group as reported by the upstream group listing.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Occurrence is one scheduled instance of an event.
type Occurrence struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Event is a calendar event as reported by the upstream event listing.
// Occurrences is empty when the source endpoint reports none; in that case
// the event's own Start/End stand in as its single occurrence.
type Event struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Start       time.Time    `json:"start"`
	End         *time.Time   `json:"end,omitempty"`
	Timezone    *string      `json:"timezone,omitempty"`
	GroupID     string       `json:"group_id,omitempty"`
	GroupName   string       `json:"group_name,omitempty"`
	Created     *time.Time   `json:"created,omitempty"`
	Modified    *time.Time   `json:"modified,omitempty"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
}

// Attendee is one person recorded as present at an occurrence.
type Attendee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AttendanceSummary is the per-occurrence attendance detail. Every field
// except EventID and Occurrence is optional; absence means the upstream
// simply did not record it.
type AttendanceSummary struct {
	EventID        string     `json:"event_id"`
	Occurrence     string     `json:"occurrence"`
	Title          *string    `json:"title,omitempty"`
	DidNotMeet     *bool      `json:"did_not_meet,omitempty"`
	HeadCount      *int       `json:"head_count,omitempty"`
	Topic          *string    `json:"topic,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	PrayerRequests *string    `json:"prayer_requests,omitempty"`
	Info           *string    `json:"info,omitempty"`
	Attendees      []Attendee `json:"attendees,omitempty"`
}

// LinkRow is the final output unit of a harvest run: one event occurrence
// with a deep link into the upstream UI. (EventID, OccurDate) is unique
// across a run's output.
type LinkRow struct {
	EventID    string             `json:"event_id"`
	Title      string             `json:"title"`
	OccurDate  string             `json:"occur_date"` // YYYY-MM-DD
	Link       string             `json:"link"`
	Attendance *AttendanceSummary `json:"attendance,omitempty"`
}
