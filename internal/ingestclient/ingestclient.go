// Package ingestclient is the agent-side HTTP client for the Ingest API:
// scan-run registration, batched file upserts, seen-touches, and the
// streamed cache fetch, all wrapped in a retry/backoff/server-down
// contract.
package ingestclient

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
)

// ErrServerDown is returned when the retry deadline is exceeded without a
// successful response.
var ErrServerDown = errors.New("ingestclient: server down (retry deadline exceeded)")

// RetryPolicy controls the backoff schedule for POST/PATCH requests.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Deadline     time.Duration
}

// DefaultRetryPolicy is the normal-operation schedule: 2s initial delay,
// doubling, capped at 10s, for a 90s overall deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second, Deadline: 90 * time.Second}
}

// InterruptRetryPolicy is the shortened schedule used while flushing
// queues during an interrupt-driven shutdown (15s deadline).
func InterruptRetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Deadline = 15 * time.Second
	return p
}

// Client talks to one siftd instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retry   RetryPolicy

	warnedOnce bool
	onWarn     func(error)
}

// New builds a Client against baseURL (e.g. "http://127.0.0.1:8080").
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 45 * time.Second},
		Retry:   DefaultRetryPolicy(),
	}
}

// OnWarn registers a callback invoked once, on the first failed attempt
// of a retry loop. Subsequent retries of the same loop stay silent.
func (c *Client) OnWarn(f func(error)) { c.onWarn = f }

// doWithRetry POSTs/PATCHes body (already gzip-encoded by the caller) to
// path, retrying on any non-2xx response or network error with
// exponential backoff until policy.Deadline elapses.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	deadline := time.Now().Add(c.Retry.Deadline)
	delay := c.Retry.InitialDelay
	warned := false

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if body != nil {
			req.Header.Set("Content-Encoding", "gzip")
		}

		resp, err := c.HTTP.Do(req)
		if err == nil && resp.StatusCode < 300 {
			return resp, nil
		}

		var attemptErr error
		if err != nil {
			attemptErr = fmt.Errorf("request error: %w", err)
		} else {
			resp.Body.Close()
			attemptErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		if !warned {
			warned = true
			if c.onWarn != nil {
				c.onWarn(attemptErr)
			}
		}

		if time.Now().Add(delay).After(deadline) {
			return nil, fmt.Errorf("%w: %v", ErrServerDown, attemptErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.Retry.MaxDelay {
			delay = c.Retry.MaxDelay
		}
	}
}

func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateScanRun registers a new scan run and returns its id.
func (c *Client) CreateScanRun(ctx context.Context, run protocol.ScanRunCreate) (int64, error) {
	body, err := gzipJSON(run)
	if err != nil {
		return 0, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPost, "/scan-runs", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out protocol.ScanRunCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

// PatchScanRun updates a scan run's status.
func (c *Client) PatchScanRun(ctx context.Context, id int64, status protocol.ScanRunStatus) error {
	body, err := gzipJSON(protocol.ScanRunPatch{Status: status})
	if err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPatch, fmt.Sprintf("/scan-runs/%d", id), body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PostFiles uploads a batch of file records, returning the count upserted.
func (c *Client) PostFiles(ctx context.Context, records []protocol.FileRecord) (int, error) {
	body, err := gzipJSON(records)
	if err != nil {
		return 0, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPost, "/files", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out protocol.UpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Upserted, nil
}

// PostSeen touches last_seen_at for a batch of (drive, path) pairs.
func (c *Client) PostSeen(ctx context.Context, host string, lastSeenAt time.Time, paths []protocol.SeenPath) (int, error) {
	body, err := gzipJSON(protocol.SeenRequest{Host: host, LastSeenAt: lastSeenAt, Paths: paths})
	if err != nil {
		return 0, err
	}
	resp, err := c.doWithRetry(ctx, http.MethodPost, "/files/seen", body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out protocol.SeenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Updated, nil
}

// StreamCache fetches the existing (path, mtime, size) cache for (host,
// root) and invokes fn for each row, without materializing the whole
// response in memory. A scan of a host with millions of rows must not
// spike the agent's RSS.
func (c *Client) StreamCache(ctx context.Context, host, root string, fn func(protocol.CacheEntry) error) error {
	q := url.Values{"host": {host}, "root": {root}}
	reqURL := c.BaseURL + "/files/cache/stream?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("fetch cache: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fetch cache: server returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry protocol.CacheEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("decode cache entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}
