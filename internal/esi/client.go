package esi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// DefaultBaseURL is the public ESI endpoint.
const DefaultBaseURL = "https://esi.evetech.net/latest"

const userAgent = "eve-jita-price/1.0 (github.com)"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Concurrency int
	Timeout     time.Duration
	Retry       RetryPolicy
	Transport   http.RoundTripper
}

// Client is a concurrency-limited ESI HTTP client.
type Client struct {
	http    *http.Client
	baseURL string
	sem     chan struct{}
	retry   RetryPolicy
}

// NewClient creates an ESI client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		sem:     make(chan struct{}, opts.Concurrency),
		retry:   opts.Retry.withDefaults(),
	}
}

// HealthCheck pings ESI to verify connectivity.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := newESIRequest(ctx, c.baseURL+"/status/?datasource=tranquility")
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetJSON fetches a URL and decodes JSON into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst interface{}) error {
	_, err := c.getJSON(ctx, url, dst)
	return err
}

// getJSON returns the X-Pages header alongside the decoded body.
func (c *Client) getJSON(ctx context.Context, url string, dst interface{}) (int, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := newESIRequest(ctx, url)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("ESI %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	pages := 1
	if p := resp.Header.Get("X-Pages"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 1 {
			pages = n
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return 0, fmt.Errorf("decode ESI response: %w", err)
	}
	return pages, nil
}

// getOrderPages fetches every page of an order listing. Pages after the first
// are fetched concurrently. A failed page fails the whole listing.
func (c *Client) getOrderPages(ctx context.Context, url string) ([]MarketOrder, error) {
	var page1 []MarketOrder
	totalPages, err := c.getJSON(ctx, url+"&page=1", &page1)
	if err != nil {
		return nil, err
	}
	if totalPages == 1 {
		return page1, nil
	}

	type pageResult struct {
		data []MarketOrder
		err  error
	}

	results := make(chan pageResult, totalPages-1)
	for p := 2; p <= totalPages; p++ {
		go func(pageNum int) {
			var data []MarketOrder
			err := c.GetJSON(ctx, fmt.Sprintf("%s&page=%d", url, pageNum), &data)
			results <- pageResult{data: data, err: err}
		}(p)
	}

	all := make([]MarketOrder, 0, len(page1)*totalPages)
	all = append(all, page1...)
	var firstErr error
	for i := 0; i < totalPages-1; i++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		all = append(all, r.data...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// newESIRequest creates a standard ESI GET request with common headers.
func newESIRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
