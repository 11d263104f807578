// Package api exposes the transfer manager over HTTP and WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/pkg/library"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// Creator starts transfers on behalf of API clients
type Creator interface {
	Add(ctx context.Context, req app.Request) (transfer.Transfer, error)
}

// Library lists the indexed finished downloads
type Library interface {
	Entries() []library.Entry
}

// Server is the control surface of a running transferkit process
type Server struct {
	manager  *transfer.Manager
	creator  Creator
	library  Library
	peers    http.Handler
	metrics  http.Handler
	logger   *slog.Logger
	interval time.Duration
	rps      float64
	burst    int

	hub     *wsHub
	events  *hubListener
	handler http.Handler
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPeerHandler mounts the peer file server under /peer/
func WithPeerHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.peers = h
	}
}

func WithLibrary(l Library) ServerOption {
	return func(s *Server) {
		s.library = l
	}
}

// WithMetricsHandler replaces the default prometheus handler
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithBroadcastInterval sets how often Run pushes snapshots to WebSocket clients
func WithBroadcastInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRateLimit bounds the control API request rate. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

func NewServer(manager *transfer.Manager, creator Creator, opts ...ServerOption) *Server {
	s := &Server{
		manager:  manager,
		creator:  creator,
		interval: time.Second,
		rps:      100,
		burst:    200,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}

	s.hub = newWSHub(s.logger)
	go s.hub.run()
	s.events = newHubListener(s.hub)
	manager.AddListener(s.events)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /transfers", s.handleListTransfers)
	mux.HandleFunc("POST /transfers", s.handleCreateTransfer)
	mux.HandleFunc("GET /transfers/{id}", s.handleGetTransfer)
	mux.HandleFunc("DELETE /transfers/{id}", s.handleDeleteTransfer)
	mux.HandleFunc("DELETE /transfers/completed", s.handleClearComplete)
	mux.HandleFunc("POST /transfers/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /transfers/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /transfers/pause-all", s.handlePauseAll)
	mux.HandleFunc("POST /transfers/resume-all", s.handleResumeAll)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("DELETE /stats/review", s.handleClearReview)
	mux.HandleFunc("GET /library", s.handleLibrary)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", s.metrics)
	if s.peers != nil {
		mux.Handle("/peer/", s.peers)
	}

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "transferkit",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/ws"
		}),
	)
	var h http.Handler = metricsMiddleware(traced)
	if s.rps > 0 {
		h = rateLimitMiddleware(s.rps, s.burst, h)
	}
	s.handler = recoveryMiddleware(s.logger, h)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run pushes transfer snapshots to WebSocket clients until ctx is done
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastSnapshot()
		}
	}
}

// BroadcastSnapshot sends the current transfer list and summary to every WebSocket client
func (s *Server) BroadcastSnapshot() {
	if s.hub.clientCount() == 0 {
		return
	}
	s.hub.Broadcast("transfers", transfer.DescribeAll(s.manager.Filter(transfer.FilterAll)))
	s.hub.Broadcast("stats", s.manager.Summary())
}

// Close stops listening to the manager and disconnects WebSocket clients
func (s *Server) Close() {
	s.manager.RemoveListener(s.events.ID())
	s.hub.Close()
}

// isPeerPath reports requests served by the peer handler, which limits itself
func isPeerPath(path string) bool {
	return strings.HasPrefix(path, "/peer/")
}
