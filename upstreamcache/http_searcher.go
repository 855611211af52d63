package upstreamcache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	errors "github.com/goliatone/go-errors"
)

const (
	defaultSearchPath    = "/search"
	defaultSearchTimeout = 10 * time.Second
	maxErrorBody         = 512
)

var _ Searcher = (*HTTPSearcher)(nil)

// HTTPSearcher queries a JSON search API over HTTP:
//
//	GET {base}/search?q=...&lang=...&country=...&num=...
//
// The response body is {"results": [{"title", "url", "snippet"}, ...]}.
type HTTPSearcher struct {
	client *resty.Client
	path   string
}

// HTTPSearcherOption configures an HTTPSearcher.
type HTTPSearcherOption func(*HTTPSearcher)

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) HTTPSearcherOption {
	return func(s *HTTPSearcher) {
		key = strings.TrimSpace(key)
		if key != "" {
			s.client.SetHeader("X-API-Key", key)
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) HTTPSearcherOption {
	return func(s *HTTPSearcher) {
		if d > 0 {
			s.client.SetTimeout(d)
		}
	}
}

// WithSearchPath overrides the /search path.
func WithSearchPath(path string) HTTPSearcherOption {
	return func(s *HTTPSearcher) {
		if path != "" {
			s.path = path
		}
	}
}

// NewHTTPSearcher returns a searcher for the API at baseURL.
func NewHTTPSearcher(baseURL string, opts ...HTTPSearcherOption) *HTTPSearcher {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultSearchTimeout).
		SetHeader("Accept", "application/json")

	s := &HTTPSearcher{client: rc, path: defaultSearchPath}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search implements Searcher. Transport failures and non 2xx responses are
// returned as external errors.
func (s *HTTPSearcher) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	params := map[string]string{"q": q.Query}
	if q.Language != "" {
		params["lang"] = q.Language
	}
	if q.Country != "" {
		params["country"] = q.Country
	}
	if q.MaxResults > 0 {
		params["num"] = strconv.Itoa(q.MaxResults)
	}

	var body searchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "search request failed").
			WithTextCode("SEARCH_UNAVAILABLE")
	}

	if resp.IsError() {
		code := resp.StatusCode()
		return nil, errors.New(fmt.Sprintf("search upstream returned %d", code), errors.CategoryExternal).
			WithCode(code).
			WithTextCode(errors.HTTPStatusToTextCode(code)).
			WithMetadata(map[string]any{"body": truncate(strings.TrimSpace(resp.String()), maxErrorBody)})
	}

	if body.Results == nil {
		return []SearchResult{}, nil
	}
	return body.Results, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
