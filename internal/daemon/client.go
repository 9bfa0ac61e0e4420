package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultAddr is where the daemon listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:7077"

// Timeouts are short on the hot paths so a missing daemon never stalls
// an interactive command.
const (
	healthTimeout    = 500 * time.Millisecond
	enqueueTimeout   = 5 * time.Second
	summarizeTimeout = 60 * time.Second
)

// ErrUnavailable signals that no daemon is reachable. Callers fall back
// to doing the work in-process.
var ErrUnavailable = errors.New("daemon unavailable")

// Client talks to a running daemon over its localhost HTTP surface.
type Client struct {
	base string
	http *http.Client
}

func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		base: "http://" + addr,
		http: &http.Client{},
	}
}

// Health reports whether the daemon answers within the health timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Enqueue hands an item to the daemon's outbound queue.
func (c *Client) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	body, err := json.Marshal(enqueueRequest{Kind: kind, Payload: raw})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/sync/enqueue", body, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Retry requeues failed items; returns how many were requeued.
func (c *Client) Retry(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	var out struct {
		Requeued int `json:"requeued"`
	}
	if err := c.post(ctx, "/sync/retry", nil, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Requeued, nil
}

// Status fetches the queue counters.
func (c *Client) Status(ctx context.Context) (*QueueStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/sync/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status returned %d", resp.StatusCode)
	}

	var status QueueStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Summarize asks the daemon for a thread summary. Summarisation may
// call the LLM, so this path gets the long timeout.
func (c *Client) Summarize(ctx context.Context, threadID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/summarize/"+threadID, nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon %s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("daemon %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
