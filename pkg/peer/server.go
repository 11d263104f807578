package peer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rescp17/transferkit/pkg/concurrency"
	"github.com/rescp17/transferkit/pkg/downloads"
	"github.com/rescp17/transferkit/pkg/fileInfo"
	"github.com/rescp17/transferkit/pkg/transfer"
)

var errRateLimited = errors.New("too many requests")

// Registrar tracks the uploads the server starts
type Registrar interface {
	Register(t transfer.Transfer) error
}

// ServerOptions tunes admission control
type ServerOptions struct {
	Slots             int     // concurrent file streams
	RequestsPerSecond float64 // 0 = unlimited
	Burst             int
	ChunkSize         int32
	RetryAfter        time.Duration // advertised to rejected clients
}

// Server shares the files below a root directory
type Server struct {
	root       string
	env        transfer.Env
	reg        Registrar
	guard      *concurrency.Guard
	limiter    *rate.Limiter
	chunkSize  int32
	retryAfter time.Duration
	logger     *slog.Logger
	mux        *http.ServeMux

	mu    sync.RWMutex
	files []fileInfo.FileNode
}

// NewServer indexes root and returns a handler serving it
func NewServer(root string, reg Registrar, env transfer.Env, opts ServerOptions) (*Server, error) {
	env = env.WithDefaults()
	if opts.ChunkSize == 0 {
		opts.ChunkSize = transfer.DefaultChunkSize
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 5 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	s := &Server{
		root:       root,
		env:        env,
		reg:        reg,
		guard:      concurrency.NewGuard(opts.Slots),
		limiter:    rate.NewLimiter(limit, opts.Burst),
		chunkSize:  opts.ChunkSize,
		retryAfter: opts.RetryAfter,
		logger:     env.Logger.With("component", "peer-server"),
		mux:        http.NewServeMux(),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP allows the Server struct to satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET "+catalogPath, s.rateLimitMiddleware(http.HandlerFunc(s.handleCatalog)))
	s.mux.Handle("GET "+catalogPath+"/{name...}",
		s.rateLimitMiddleware(s.concurrencyMiddleware(http.HandlerFunc(s.handleFile))))
}

// Refresh rebuilds the catalog from disk
func (s *Server) Refresh() error {
	files, err := fileInfo.Index(s.root, s.Files())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	s.logger.Debug("Catalog indexed", "root", s.root, "files", len(files))
	return nil
}

// Watch re-indexes the shared directory every interval until ctx is done
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				s.logger.Warn("Failed to refresh catalog", "root", s.root, "error", err)
			}
		}
	}
}

// Files returns the current catalog
func (s *Server) Files() []fileInfo.FileNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]fileInfo.FileNode(nil), s.files...)
}

// rateLimitMiddleware answers 429 once the request budget is spent
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.reject(w, r, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// concurrencyMiddleware bounds the number of files streamed at once
func (s *Server) concurrencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.guard.Execute(func() error {
			next.ServeHTTP(w, r)
			return nil
		})
		if errors.Is(err, concurrency.ErrBusy) {
			s.reject(w, r, http.StatusServiceUnavailable, err)
		}
	})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("Request rejected", "remote", r.RemoteAddr, "service_id", r.Header.Get(serviceIDHeader), "status", status)
	secs := int(math.Ceil(s.retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSONError(w, status, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Files()); err != nil {
		s.logger.Debug("Failed to write catalog", "error", err)
	}
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	node, err := fileInfo.Find(s.files, r.PathValue("name"))
	s.mu.RUnlock()
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}

	file, err := transfer.OpenShared(&node)
	if err != nil {
		s.logger.Error("Failed to open shared file", "path", node.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, errors.New("file unavailable"))
		return
	}
	defer file.Close()

	upload := downloads.NewPeerUpload(s.env, node, r.RemoteAddr)
	if err := s.reg.Register(upload); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if err := upload.Start(r.Context()); err != nil {
		upload.Remove(false)
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(node.Size, 10))
	if node.MimeType != "" {
		w.Header().Set("Content-Type", node.MimeType)
	}
	if node.Checksum != "" {
		w.Header().Set("X-Checksum-Sha256", node.Checksum)
	}
	w.WriteHeader(http.StatusOK)

	if err := s.stream(w, r, file, node.Size, upload); err != nil {
		s.logger.Info("Upload stopped", "file", node.Name, "remote", r.RemoteAddr, "error", err)
		upload.Remove(false)
		return
	}
	upload.Complete()
}

var errUploadCanceled = errors.New("upload canceled")

func (s *Server) stream(w http.ResponseWriter, r *http.Request, src io.Reader, size int64, upload *downloads.PeerUpload) error {
	_, err := transfer.StreamFile(r.Context(), w, src, size, s.chunkSize, upload.AddBytesSent)
	if errors.Is(err, transfer.ErrStopped) {
		return errUploadCanceled
	}
	return err
}
