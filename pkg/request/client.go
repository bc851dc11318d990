// Package request provides a queued HTTP client shared by all catalog
// calls. Requests to the same provider host are serialized through one
// worker so rate limits are respected process-wide.
package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lectern/pkg/tracker"
	"lectern/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("Lectern academic narrator (Lectern/%s)", version.Version)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a 401/403 status error.
func IsAuthError(err error) bool {
	se, ok := err.(*StatusError)
	return ok && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

// Client handles HTTP requests with queuing, retries, and tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	retries    int

	// Queues per provider (host)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	ctx      context.Context
	method   string
	url      string
	body     []byte
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// Options configure a Client.
type Options struct {
	Timeout time.Duration
	Retries int
	Backoff *ProviderBackoff
}

// New creates a new Client.
func New(t *tracker.Tracker, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = NewProviderBackoff(time.Second, 30*time.Second)
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		tracker:    t,
		backoff:    opts.Backoff,
		retries:    opts.Retries,
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request with queuing.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, "GET", u, nil, headers)
}

// Post performs a POST request with queuing.
func (c *Client) Post(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, "POST", u, body, headers)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	respChan := make(chan jobResult, 1)
	j := job{ctx: ctx, method: method, url: u, body: body, headers: headers, respChan: respChan}

	c.dispatch(provider, j)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	// Group all catalog subdomains (api, api-global, ...) into one
	// provider so their requests share a queue.
	if strings.HasSuffix(host, ".elevenlabs.io") || host == "elevenlabs.io" {
		return "catalog"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.ctx.Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.ctx.Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.ctx.Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.ctx.Err())
			j.respChan <- jobResult{err: j.ctx.Err()}
			continue
		}

		c.backoff.Wait(provider)

		body, err := c.executeWithRetry(j)
		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			c.backoff.RecordSuccess(provider)
		} else {
			c.tracker.TrackAPIFailure(provider)
			c.backoff.RecordFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}

		// Safety gap to stay clear of burst rate limits
		time.Sleep(100 * time.Millisecond)
	}
}

// executeWithRetry attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithRetry(j job) ([]byte, error) {
	baseDelay := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if j.ctx.Err() != nil {
			return nil, j.ctx.Err()
		}

		req, err := c.buildRequest(j)
		if err != nil {
			return nil, err
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		body, retryable, err := c.executeAttempt(req)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		sleepDur := time.Duration(math.Pow(2, float64(attempt))) * baseDelay
		select {
		case <-time.After(sleepDur):
		case <-j.ctx.Done():
			return nil, j.ctx.Err()
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// buildRequest creates a fresh request per attempt so the body can be re-sent.
func (c *Client) buildRequest(j job) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if j.body != nil {
		reader = bytes.NewReader(j.body)
	}
	req, err := http.NewRequestWithContext(j.ctx, j.method, j.url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	uaSet := false
	for k, v := range j.headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaSet = true
		}
	}
	if !uaSet {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	return req, nil
}

func (c *Client) executeAttempt(req *http.Request) (body []byte, retryable bool, err error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, false, req.Context().Err()
		}
		slog.Warn("Request failed", "url", req.URL, "error", err)
		return nil, true, err
	}
	defer resp.Body.Close()

	// 429 and 5xx are worth retrying; everything else 4xx is final.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL)
		return nil, true, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(b), 200)}
	}

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(b), 200)}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read error: %w", err)
	}
	return body, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
