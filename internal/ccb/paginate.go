package ccb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
)

// PageOptions overrides the client defaults for a single pagination run.
// Zero fields keep the configured values.
type PageOptions struct {
	PageSize    int
	Concurrency int
	MaxPages    int
}

// Paginate drives one list endpoint to completion. The upstream offers no
// continuation cursor, so pages are addressed purely by a page number
// starting at 1: workers claim page numbers from a shared atomic counter and
// flip a shared one-way stop flag when a page comes back empty, short, or
// past the MaxPages ceiling. Workers already in flight when the flag flips
// may fetch one extra page each; the resulting duplicates are harmless and
// absorbed by the downstream deduplicator.
//
// Any transport, API, or parse error aborts the whole run with no partial
// result. A partial group or event list would silently under-report, so the
// harvest side fails closed (the attendance enricher is the deliberate
// fail-open counterpart).
func (c *Client) Paginate(ctx context.Context, service string, params url.Values, extractPath []string, opts PageOptions) ([]*Node, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = c.cfg.PageSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.cfg.Concurrency
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}

	var (
		cursor  atomic.Int64
		stop    atomic.Bool
		wg      sync.WaitGroup
		mu      sync.Mutex
		records []*Node
		runErr  error
	)

	fail := func(err error) {
		mu.Lock()
		if runErr == nil {
			runErr = err
		}
		mu.Unlock()
		stop.Store(true)
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if stop.Load() {
					return
				}
				page := cursor.Add(1)
				if page > int64(maxPages) {
					stop.Store(true)
					return
				}

				p := url.Values{}
				for k, vs := range params {
					p[k] = vs
				}
				p.Set("page", strconv.FormatInt(page, 10))
				p.Set("per_page", strconv.Itoa(pageSize))

				tree, err := c.Request(ctx, service, p)
				if err != nil {
					fail(fmt.Errorf("paginating %s page %d: %w", service, page, err))
					return
				}

				found := tree.FindAll(extractPath...)
				mu.Lock()
				records = append(records, found...)
				mu.Unlock()

				// An empty page or a short page signals the last page.
				if len(found) == 0 || len(found) < pageSize {
					stop.Store(true)
					return
				}
			}
		}()
	}

	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return records, nil
}
