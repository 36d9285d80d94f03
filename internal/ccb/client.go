// Package ccb is a client for the upstream church-management XML API. The
// API offers no bulk export: every collection is reachable only through
// Basic-Authenticated, page-numbered list endpoints whose response shapes
// vary by endpoint and sometimes by record.
package ccb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPDoer is the interface for executing HTTP requests. Both *http.Client
// and test doubles satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// bodyExcerptLen caps how much of an error response body is kept for messages.
const bodyExcerptLen = 300

// Client talks to the upstream API.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

// NewClient creates a Client from the given config. It fails with a
// *ConfigError before any network activity if credentials or the base URL
// are missing.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg.withDefaults(),
		httpClient: http.DefaultClient,
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

// Config returns the effective (defaulted) configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Request performs an authenticated GET against the named service and parses
// the XML response into a generic tree.
func (c *Client) Request(ctx context.Context, service string, params url.Values) (*Node, error) {
	return c.do(ctx, http.MethodGet, service, params)
}

// Post performs an authenticated form-encoded POST against the named service.
// A few upstream endpoints only accept their filters in a form body.
func (c *Client) Post(ctx context.Context, service string, form url.Values) (*Node, error) {
	return c.do(ctx, http.MethodPost, service, form)
}

func (c *Client) do(ctx context.Context, method, service string, params url.Values) (*Node, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api.php"

	query := url.Values{"srv": {service}}
	var body io.Reader
	var contentType string

	switch method {
	case http.MethodGet:
		for k, vs := range params {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
	default:
		body = strings.NewReader(params.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	reqURL := endpoint + "?" + query.Encode()

	data, err := WithTimeout(ctx, c.cfg.Timeout, service, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", service, err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{Status: resp.StatusCode, Body: excerpt(payload)}
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}

	tree, err := ParseTree(data)
	if err != nil {
		return nil, &ParseError{Service: service, Err: err}
	}

	// The upstream reports some failures as HTTP 200 with an embedded error
	// element, so the document is checked even on a clean status.
	if msg := embeddedError(tree); msg != "" {
		return nil, &APIError{Message: msg}
	}

	return tree, nil
}

// embeddedError returns the first business-error message found in the
// response document, or "".
func embeddedError(tree *Node) string {
	errs := tree.Find("response", "errors")
	if errs == nil {
		// Some endpoints skip the response wrapper.
		errs = tree.Child("errors")
	}
	if errs == nil {
		return ""
	}
	for _, e := range errs.Children {
		if e.Name != "error" {
			continue
		}
		if msg := e.TrimmedText(); msg != "" {
			return msg
		}
	}
	if msg := errs.TrimmedText(); msg != "" {
		return msg
	}
	return "unspecified error"
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerptLen {
		s = s[:bodyExcerptLen] + "..."
	}
	return s
}
