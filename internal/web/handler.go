package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"church-attendance/internal/cache"
	"church-attendance/internal/harvest"
	"church-attendance/internal/model"
)

//go:embed templates/index.html
var templates embed.FS

// harvestTimeout bounds one full harvest triggered from the web surface.
const harvestTimeout = 3 * time.Minute

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	harvester *harvest.Harvester
	cache     *cache.Cache
}

// New creates a new Handler with the given harvester and cache.
func New(h *harvest.Harvester, c *cache.Cache) *Handler {
	return &Handler{
		harvester: h,
		cache:     c,
	}
}

// Routes returns the chi router for all endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.noCache(h.handleIndex))
	r.Get("/rows", h.noCache(h.handleRows))
	r.Get("/health", h.handleHealth)
	return r
}

func (h *Handler) noCache(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next(w, r)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, _ := templates.ReadFile("templates/index.html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleRows runs (or serves from cache) one harvest described entirely by
// the query string and returns the sorted rows as JSON.
func (h *Handler) handleRows(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := queryKey(q)
	rows, ok := h.cache.Get(key)
	if !ok {
		ctx, cancel := context.WithTimeout(r.Context(), harvestTimeout)
		defer cancel()

		rows, err = h.harvester.Run(ctx, q)
		if err != nil {
			log.Printf("web: harvest failed: %v", err)
			http.Error(w, "harvest failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		if err := h.cache.Set(key, rows); err != nil {
			log.Printf("web: caching rows: %v", err)
		}
	}

	if rows == nil {
		rows = []model.LinkRow{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(rows)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Refresh re-runs q and primes the cache; used by the background scheduler.
func (h *Handler) Refresh(ctx context.Context, q harvest.Query) error {
	rows, err := h.harvester.Run(ctx, q)
	if err != nil {
		return err
	}
	return h.cache.Set(queryKey(q), rows)
}

// parseQuery builds a harvest query from the request's query string.
func parseQuery(r *http.Request) (harvest.Query, error) {
	vals := r.URL.Query()
	q := harvest.Query{
		GroupPrefix:       vals.Get("prefix"),
		IncludeAttendance: boolParam(vals.Get("attendance")),
		IncludeAttendees:  boolParam(vals.Get("attendees")),
	}

	if ids := vals.Get("group_ids"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.GroupIDs = append(q.GroupIDs, id)
			}
		}
	}

	var err error
	if q.Start, err = dateParam(vals.Get("start")); err != nil {
		return q, fmt.Errorf("invalid start date: %w", err)
	}
	if q.End, err = dateParam(vals.Get("end")); err != nil {
		return q, fmt.Errorf("invalid end date: %w", err)
	}
	if q.Start.IsZero() {
		q.Start = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if q.End.IsZero() {
		q.End = q.Start.AddDate(0, 1, 0)
	}
	if q.End.Before(q.Start) {
		return q, fmt.Errorf("end date %s precedes start date %s",
			q.End.Format("2006-01-02"), q.Start.Format("2006-01-02"))
	}

	if v := vals.Get("page_size"); v != "" {
		if q.PageSize, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("invalid page_size: %w", err)
		}
	}
	if v := vals.Get("concurrency"); v != "" {
		if q.Concurrency, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("invalid concurrency: %w", err)
		}
	}

	return q, nil
}

func dateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func boolParam(s string) bool {
	return s == "1" || s == "true" || s == "yes"
}

// queryKey canonicalizes a query for use as a cache key.
func queryKey(q harvest.Query) string {
	return fmt.Sprintf("%s|%s|%s|%s|%t|%t|%d|%d",
		q.GroupPrefix,
		strings.Join(q.GroupIDs, ","),
		q.Start.Format("2006-01-02"),
		q.End.Format("2006-01-02"),
		q.IncludeAttendance,
		q.IncludeAttendees,
		q.PageSize,
		q.Concurrency,
	)
}
