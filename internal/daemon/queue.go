// Package daemon runs the local sync service: an HTTP surface for the
// CLI and an outbound queue that pushes updates to the remote backend
// with at-least-once retry.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	enqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlt_sync_enqueued_total",
		Help: "Items accepted into the outbound sync queue.",
	})
	sentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlt_sync_sent_total",
		Help: "Items delivered to the remote backend.",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlt_sync_failed_total",
		Help: "Items that exhausted their delivery retries.",
	})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vlt_sync_queue_depth",
		Help: "Items currently waiting for delivery.",
	})
)

// Item is one outbound sync unit.
type Item struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Queued   time.Time       `json:"queued"`
}

// QueueStatus is the snapshot reported over /sync/status.
type QueueStatus struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Sent    int `json:"sent"`
}

// Queue holds outbound items and delivers them to the remote backend.
// Delivery is at-least-once: items move to the failed list only after
// the backoff schedule is exhausted, and can be requeued.
type Queue struct {
	remoteURL string
	token     string
	client    *http.Client
	log       *zap.Logger

	mu      sync.Mutex
	pending []Item
	failed  []Item
	sent    int
}

func NewQueue(remoteURL, token string, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		remoteURL: remoteURL,
		token:     token,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Enqueue accepts an item for delivery.
func (q *Queue) Enqueue(kind string, payload json.RawMessage) Item {
	item := Item{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: payload,
		Queued:  time.Now().UTC(),
	}
	q.mu.Lock()
	q.pending = append(q.pending, item)
	depth := len(q.pending)
	q.mu.Unlock()

	enqueuedTotal.Inc()
	queueDepth.Set(float64(depth))
	return item
}

// RetryFailed moves failed items back onto the pending queue.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.failed)
	q.pending = append(q.pending, q.failed...)
	q.failed = nil
	queueDepth.Set(float64(len(q.pending)))
	return n
}

// Status snapshots the queue counters.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStatus{Pending: len(q.pending), Failed: len(q.failed), Sent: q.sent}
}

// Flush attempts delivery of everything pending. Items that exhaust
// their retries land on the failed list.
func (q *Queue) Flush(ctx context.Context) {
	q.mu.Lock()
	items := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range items {
		if err := q.deliver(ctx, &item); err != nil {
			q.log.Warn("sync delivery failed", zap.String("id", item.ID), zap.Error(err))
			failedTotal.Inc()
			q.mu.Lock()
			q.failed = append(q.failed, item)
			q.mu.Unlock()
			continue
		}
		sentTotal.Inc()
		q.mu.Lock()
		q.sent++
		q.mu.Unlock()
	}

	q.mu.Lock()
	queueDepth.Set(float64(len(q.pending)))
	q.mu.Unlock()
}

// Run flushes on an interval until the context ends.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, item *Item) error {
	if q.remoteURL == "" {
		return fmt.Errorf("no remote backend configured")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)

	return backoff.Retry(func() error {
		item.Attempts++
		body, err := json.Marshal(item)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.remoteURL+"/api/sync", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if q.token != "" {
			req.Header.Set("Authorization", "Bearer "+q.token)
		}

		resp, err := q.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("backend returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("backend rejected item: %d", resp.StatusCode))
		}
		return nil
	}, policy)
}
