package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"church-attendance/internal/cache"
	"church-attendance/internal/ccb"
	"church-attendance/internal/harvest"
	"church-attendance/internal/model"
)

const (
	testGroupsDoc = `<ccb_api><response><groups>
		<group id="170"><name>LVT | S1 | Alpha</name></group>
		<group id="999"><name>Other</name></group>
	</groups></response></ccb_api>`

	testEventsDoc = `<ccb_api><response><events>
		<event id="e1"><name>Liturgy</name>
			<group id="170"><name>LVT | S1 | Alpha</name></group>
			<start_datetime>2025-08-03 10:00:00</start_datetime>
		</event>
		<event id="e2"><name>Outside</name>
			<group id="999"><name>Other</name></group>
			<start_datetime>2025-08-10 10:00:00</start_datetime>
		</event>
	</events></response></ccb_api>`
)

// newTestHandler wires a handler against a fake upstream and returns it with
// a counter of upstream requests served.
func newTestHandler(t *testing.T) (*Handler, *atomic.Int64) {
	t.Helper()

	var upstreamCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		switch r.URL.Query().Get("srv") {
		case "group_profiles":
			w.Write([]byte(testGroupsDoc))
		case "event_profiles":
			w.Write([]byte(testEventsDoc))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	client, err := ccb.NewClient(ccb.Config{
		BaseURL:  server.URL,
		Username: "u",
		Password: "p",
	})
	require.NoError(t, err)

	c, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	return New(harvest.New(client), c), &upstreamCalls
}

func get(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleRows(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/rows?prefix=LVT+%7C+S1+%7C&start=2025-08-01&end=2025-08-31&page_size=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	var rows []model.LinkRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "e1", rows[0].EventID)
	assert.Equal(t, "2025-08-03", rows[0].OccurDate)
	assert.Contains(t, rows[0].Link, "event_id=e1")
}

func TestHandleRowsServesFromCache(t *testing.T) {
	h, upstreamCalls := newTestHandler(t)

	target := "/rows?prefix=LVT+%7C+S1+%7C&start=2025-08-01&end=2025-08-31&page_size=50"
	require.Equal(t, http.StatusOK, get(t, h, target).Code)
	after := upstreamCalls.Load()
	require.Greater(t, after, int64(0))

	require.Equal(t, http.StatusOK, get(t, h, target).Code)
	assert.Equal(t, after, upstreamCalls.Load(), "second request must not hit upstream")
}

func TestHandleRowsEmptyResultIsJSONArray(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/rows?prefix=Nothing+Matches&start=2025-08-01&end=2025-08-31&page_size=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleRowsBadRange(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/rows?start=2025-08-31&end=2025-08-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "precedes")
}

func TestHandleRowsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := ccb.NewClient(ccb.Config{BaseURL: server.URL, Username: "u", Password: "p"})
	require.NoError(t, err)
	c, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	h := New(harvest.New(client), c)

	rec := get(t, h, "/rows?prefix=LVT&start=2025-08-01&end=2025-08-31")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestParseQuery(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet,
			"/rows?prefix=P&group_ids=1,+2,,3&start=2025-08-01&end=2025-08-31&attendance=true&attendees=1&page_size=10&concurrency=2", nil)
		q, err := parseQuery(r)
		require.NoError(t, err)

		assert.Equal(t, "P", q.GroupPrefix)
		assert.Equal(t, []string{"1", "2", "3"}, q.GroupIDs)
		assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), q.Start)
		assert.True(t, q.IncludeAttendance)
		assert.True(t, q.IncludeAttendees)
		assert.Equal(t, 10, q.PageSize)
		assert.Equal(t, 2, q.Concurrency)
	})

	t.Run("defaults", func(t *testing.T) {
		q, err := parseQuery(httptest.NewRequest(http.MethodGet, "/rows", nil))
		require.NoError(t, err)

		assert.False(t, q.Start.IsZero())
		assert.Equal(t, q.Start.AddDate(0, 1, 0), q.End)
		assert.False(t, q.IncludeAttendance)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := parseQuery(httptest.NewRequest(http.MethodGet, "/rows?start=08/01/2025", nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start")
	})

	t.Run("bad page size", func(t *testing.T) {
		_, err := parseQuery(httptest.NewRequest(http.MethodGet, "/rows?page_size=many", nil))
		require.Error(t, err)
	})
}

func TestQueryKeyCanonical(t *testing.T) {
	a := queryKey(harvest.Query{GroupPrefix: "P", Start: day(2025, 8, 1), End: day(2025, 8, 31)})
	b := queryKey(harvest.Query{GroupPrefix: "P", Start: day(2025, 8, 1), End: day(2025, 8, 31)})
	c := queryKey(harvest.Query{GroupPrefix: "Q", Start: day(2025, 8, 1), End: day(2025, 8, 31)})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
