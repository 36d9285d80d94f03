// Package harvest runs one complete harvest: group discovery, event
// discovery, range filtering and deduplication, and optional attendance
// enrichment. Nothing is persisted here; callers own what happens to the
// resulting rows.
package harvest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"church-attendance/internal/ccb"
	"church-attendance/internal/model"
	"church-attendance/internal/normalize"
)

// Upstream service names and the extraction paths of their record lists.
var (
	groupService   = "group_profiles"
	groupPath      = []string{"response", "groups", "group"}
	eventService   = "event_profiles"
	eventPath      = []string{"response", "events", "event"}
	attendanceName = "attendance_profile"
)

// Query describes one harvest run. Either GroupPrefix or GroupIDs selects
// the target groups; when both are empty every event is included.
type Query struct {
	GroupPrefix string
	GroupIDs    []string
	Start       time.Time // inclusive calendar date
	End         time.Time // inclusive calendar date

	IncludeAttendance bool
	IncludeAttendees  bool

	// Pagination overrides for this run; zero keeps the client defaults.
	PageSize    int
	Concurrency int
}

// Harvester drives harvest runs against one upstream client.
type Harvester struct {
	client *ccb.Client

	// Enrichment pacing, overridable in tests.
	enrichBaseDelay     time.Duration
	enrichDispatchDelay time.Duration
}

// New creates a Harvester for the given client.
func New(client *ccb.Client) *Harvester {
	return &Harvester{
		client:              client,
		enrichBaseDelay:     enrichBaseDelay,
		enrichDispatchDelay: enrichDispatchDelay,
	}
}

// Run executes the full harvest for q and returns the deduplicated rows
// sorted by occurrence date, then event id. Any failure during group or
// event discovery aborts the run with no partial result.
func (h *Harvester) Run(ctx context.Context, q Query) ([]model.LinkRow, error) {
	groupIDs, err := h.targetGroups(ctx, q)
	if err != nil {
		return nil, err
	}
	if groupIDs != nil && len(groupIDs) == 0 {
		// A group filter was requested and nothing matched.
		return nil, nil
	}

	events, err := h.Events(ctx, q)
	if err != nil {
		return nil, err
	}

	rows := Filter(events, groupIDs, q.Start, q.End, h.DeepLink)

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].OccurDate != rows[j].OccurDate {
			return rows[i].OccurDate < rows[j].OccurDate
		}
		return rows[i].EventID < rows[j].EventID
	})

	if q.IncludeAttendance {
		h.Enrich(ctx, rows, q.IncludeAttendees)
	}

	return rows, nil
}

// targetGroups resolves the query's group selection to an id set. A nil set
// means "no filtering"; an empty non-nil set means a filter was requested
// but matched nothing.
func (h *Harvester) targetGroups(ctx context.Context, q Query) (map[string]bool, error) {
	if len(q.GroupIDs) > 0 {
		set := make(map[string]bool, len(q.GroupIDs))
		for _, id := range q.GroupIDs {
			set[id] = true
		}
		return set, nil
	}
	if q.GroupPrefix == "" {
		return nil, nil
	}

	groups, err := h.Groups(ctx, q)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, g := range groups {
		if strings.HasPrefix(g.Name, q.GroupPrefix) {
			set[g.ID] = true
		}
	}
	log.Printf("harvest: %d of %d groups match prefix %q", len(set), len(groups), q.GroupPrefix)
	return set, nil
}

// Groups fetches and normalizes the full group listing. Nameless groups are
// dropped; duplicate ids from pagination over-fetch collapse to one.
func (h *Harvester) Groups(ctx context.Context, q Query) ([]model.Group, error) {
	raw, err := h.client.Paginate(ctx, groupService, nil, groupPath, ccb.PageOptions{
		PageSize:    q.PageSize,
		Concurrency: q.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	var groups []model.Group
	for _, n := range raw {
		g, ok := normalize.Group(n)
		if !ok || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		groups = append(groups, g)
	}
	return groups, nil
}

// Events fetches and normalizes the raw event listing for the query range.
// The upstream date filters are advisory only (some deployments ignore
// them), so the range filter downstream remains authoritative.
func (h *Harvester) Events(ctx context.Context, q Query) ([]model.Event, error) {
	params := url.Values{}
	if !q.Start.IsZero() {
		params.Set("date_start", q.Start.Format("2006-01-02"))
	}
	if !q.End.IsZero() {
		params.Set("date_end", q.End.Format("2006-01-02"))
	}

	raw, err := h.client.Paginate(ctx, eventService, params, eventPath, ccb.PageOptions{
		PageSize:    q.PageSize,
		Concurrency: q.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}

	events := make([]model.Event, 0, len(raw))
	for _, n := range raw {
		events = append(events, normalize.Event(n))
	}
	return events, nil
}

// DeepLink builds the upstream UI link for one event occurrence.
func (h *Harvester) DeepLink(eventID string, occur time.Time) string {
	cfg := h.client.Config()
	base := strings.TrimRight(cfg.BaseURL, "/")
	return fmt.Sprintf("%s%s?event_id=%s&occur=%s",
		base, cfg.DetailPath, url.QueryEscape(eventID), occur.Format("20060102"))
}
