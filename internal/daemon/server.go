package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vlt/internal/store"
	"vlt/internal/summary"
)

const flushInterval = 5 * time.Second

// Server is the localhost sync service. The CLI talks to it over HTTP;
// it batches outbound sync traffic and serves thread summarisation so
// interactive commands stay fast.
type Server struct {
	addr       string
	store      *store.Store
	queue      *Queue
	summarizer *summary.Summarizer
	log        *zap.Logger

	httpServer *http.Server
}

func NewServer(addr string, st *store.Store, queue *Queue, summarizer *summary.Summarizer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{addr: addr, store: st, queue: queue, summarizer: summarizer, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync/enqueue", s.handleEnqueue)
	mux.HandleFunc("POST /sync/retry", s.handleRetry)
	mux.HandleFunc("GET /sync/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /summarize/{thread_id}", s.handleSummarize)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until the context ends, flushing the outbound queue on an
// interval alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("daemon listen %s: %w", s.addr, err)
	}
	s.log.Info("daemon listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.queue.Run(ctx, flushInterval)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type enqueueRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("kind is required"))
		return
	}
	item := s.queue.Enqueue(req.Kind, req.Payload)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": item.ID})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	n := s.queue.RetryFailed()
	writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	if s.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("summarizer not configured"))
		return
	}
	if _, err := s.store.GetThread(threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("thread %s not found", threadID))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	text, err := s.summarizer.GenerateSummary(r.Context(), threadID, false)
	if err != nil {
		s.log.Error("summarize failed", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thread_id": threadID, "summary": text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
