package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"church-attendance/internal/model"
)

// attendanceServer fails the attendance fetch for an event the configured
// number of times before serving a valid payload.
type attendanceServer struct {
	mu       sync.Mutex
	failures map[string]int // event id -> remaining failures
	calls    map[string]int
}

func (s *attendanceServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if srv := r.URL.Query().Get("srv"); srv != "attendance_profile" {
			t.Errorf("Unexpected service %q", srv)
			http.NotFound(w, r)
			return
		}
		id := r.URL.Query().Get("id")
		occur := r.URL.Query().Get("occurrence")

		s.mu.Lock()
		s.calls[id]++
		remaining := s.failures[id]
		if remaining > 0 {
			s.failures[id] = remaining - 1
		}
		s.mu.Unlock()

		if remaining > 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `<ccb_api><response><attendance>
			<name>Service for %s</name>
			<head_count>42</head_count>
			<topic>Weekly gathering on %s</topic>
			<attendees>
				<attendee id="p1"><name>Anna Andersson</name></attendee>
				<attendee id="p2"><name>Bo Berg</name></attendee>
			</attendees>
		</attendance></response></ccb_api>`, id, occur)
	}
}

func (s *attendanceServer) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func enrichRows() []model.LinkRow {
	return []model.LinkRow{
		{EventID: "e1", Title: "Alpha", OccurDate: "2025-08-03", Link: "https://x/1"},
		{EventID: "e2", Title: "Beta", OccurDate: "2025-08-10", Link: "https://x/2"},
		{EventID: "e3", Title: "Gamma", OccurDate: "2025-08-17", Link: "https://x/3"},
	}
}

func TestEnrichRetriesThenSucceeds(t *testing.T) {
	upstream := &attendanceServer{
		failures: map[string]int{"e1": 2}, // two failures, third attempt lands
		calls:    map[string]int{},
	}
	server := httptest.NewServer(upstream.handler(t))
	defer server.Close()

	h := newTestHarvester(t, server.URL)
	rows := enrichRows()
	h.Enrich(context.Background(), rows, false)

	require.NotNil(t, rows[0].Attendance)
	assert.Equal(t, 3, upstream.callCount("e1"))
	assert.Equal(t, "e1", rows[0].Attendance.EventID)
	assert.Equal(t, "2025-08-03", rows[0].Attendance.Occurrence)
	require.NotNil(t, rows[0].Attendance.HeadCount)
	assert.Equal(t, 42, *rows[0].Attendance.HeadCount)
	assert.Empty(t, rows[0].Attendance.Attendees, "roster must stay off unless asked for")
}

func TestEnrichExhaustedFailureLeavesRowBare(t *testing.T) {
	upstream := &attendanceServer{
		failures: map[string]int{"e2": 10}, // never recovers within three attempts
		calls:    map[string]int{},
	}
	server := httptest.NewServer(upstream.handler(t))
	defer server.Close()

	h := newTestHarvester(t, server.URL)
	rows := enrichRows()
	h.Enrich(context.Background(), rows, false)

	// The failing row is skipped; the rest of the batch still completes.
	assert.Nil(t, rows[1].Attendance)
	assert.Equal(t, 3, upstream.callCount("e2"))
	assert.NotNil(t, rows[0].Attendance)
	assert.NotNil(t, rows[2].Attendance)
}

func TestEnrichIncludesAttendees(t *testing.T) {
	upstream := &attendanceServer{failures: map[string]int{}, calls: map[string]int{}}
	server := httptest.NewServer(upstream.handler(t))
	defer server.Close()

	h := newTestHarvester(t, server.URL)
	rows := enrichRows()
	h.Enrich(context.Background(), rows, true)

	require.NotNil(t, rows[2].Attendance)
	require.Len(t, rows[2].Attendance.Attendees, 2)
	assert.Equal(t, "Anna Andersson", rows[2].Attendance.Attendees[0].Name)
	assert.Equal(t, "p2", rows[2].Attendance.Attendees[1].ID)
}

func TestEnrichCancelledContext(t *testing.T) {
	upstream := &attendanceServer{failures: map[string]int{}, calls: map[string]int{}}
	server := httptest.NewServer(upstream.handler(t))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newTestHarvester(t, server.URL)
	rows := enrichRows()
	h.Enrich(ctx, rows, false)

	for i := range rows {
		assert.Nil(t, rows[i].Attendance)
	}
}
