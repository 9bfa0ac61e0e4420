package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/store"
	"vlt/internal/summary"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *Queue) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureProject(store.Project{ID: "proj", Name: "Test"}))

	queue := NewQueue("", "", nil)
	summarizer := summary.NewSummarizer(st, nil, "m", nil)
	return NewServer(DefaultAddr, st, queue, summarizer, nil), st, queue
}

func newTestClient(t *testing.T, s *Server) *Client {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return NewClient(strings.TrimPrefix(ts.URL, "http://"))
}

func TestHealthAndEnqueue(t *testing.T) {
	s, _, queue := newTestServer(t)
	client := newTestClient(t, s)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	id, err := client.Enqueue(ctx, "thread_push", map[string]string{"thread": "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)
	assert.Zero(t, status.Failed)
	assert.Equal(t, 1, queue.Status().Pending)
}

func TestEnqueueRejectsMissingKind(t *testing.T) {
	s, _, _ := newTestServer(t)
	client := newTestClient(t, s)

	_, err := client.Enqueue(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind is required")
}

func TestClientUnavailableDaemon(t *testing.T) {
	// Nothing listens here.
	client := NewClient("127.0.0.1:1")
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = client.Enqueue(context.Background(), "k", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSummarizeEndpoint(t *testing.T) {
	s, st, _ := newTestServer(t)
	client := newTestClient(t, s)

	thread, err := st.CreateThread("proj")
	require.NoError(t, err)

	// An empty thread summarises without touching the LLM.
	text, err := client.Summarize(context.Background(), thread.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.EmptyThreadSummary, text)

	_, err = client.Summarize(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQueueFlushDelivers(t *testing.T) {
	var received atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sync", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var item Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "thread_push", item.Kind)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	q := NewQueue(backend.URL, "tok", nil)
	q.Enqueue("thread_push", json.RawMessage(`{"thread":"t1"}`))
	q.Enqueue("thread_push", json.RawMessage(`{"thread":"t2"}`))

	q.Flush(context.Background())

	assert.Equal(t, int32(2), received.Load())
	status := q.Status()
	assert.Zero(t, status.Pending)
	assert.Zero(t, status.Failed)
	assert.Equal(t, 2, status.Sent)
}

func TestQueueRejectionFailsAndRetries(t *testing.T) {
	var reject atomic.Bool
	reject.Store(true)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reject.Load() {
			// 4xx is permanent: no backoff retries.
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	q := NewQueue(backend.URL, "", nil)
	q.Enqueue("state_update", json.RawMessage(`{}`))

	q.Flush(context.Background())
	status := q.Status()
	assert.Equal(t, 1, status.Failed)
	assert.Zero(t, status.Sent)

	// Retry moves the item back to pending; the next flush succeeds.
	reject.Store(false)
	assert.Equal(t, 1, q.RetryFailed())
	q.Flush(context.Background())
	status = q.Status()
	assert.Zero(t, status.Failed)
	assert.Equal(t, 1, status.Sent)
}

func TestSyncRetryEndpoint(t *testing.T) {
	s, _, queue := newTestServer(t)
	client := newTestClient(t, s)

	queue.mu.Lock()
	queue.failed = append(queue.failed, Item{ID: "x", Kind: "k"})
	queue.mu.Unlock()

	n, err := client.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, queue.Status().Pending)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
