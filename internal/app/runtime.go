package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rescp17/transferkit/internal/metrics"
	"github.com/rescp17/transferkit/internal/util"
	"github.com/rescp17/transferkit/pkg/downloads"
	"github.com/rescp17/transferkit/pkg/fetch"
	"github.com/rescp17/transferkit/pkg/fileInfo"
	"github.com/rescp17/transferkit/pkg/library"
	"github.com/rescp17/transferkit/pkg/peer"
	"github.com/rescp17/transferkit/pkg/postprocess"
	"github.com/rescp17/transferkit/pkg/torrent"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// ErrUnsupportedURL is returned for URLs no transfer kind can fetch
var ErrUnsupportedURL = errors.New("unsupported url")

// Request describes a download started from a URL
type Request struct {
	URL        string `json:"url"`
	FileName   string `json:"file_name,omitempty"`
	Compressed bool   `json:"compressed,omitempty"`
}

// Runtime owns the long lived collaborators shared by every transfer
type Runtime struct {
	Manager *transfer.Manager
	Library *library.Scanner
	Peers   *peer.Client

	cfg         Config
	tcfg        *transfer.Config
	logger      *slog.Logger
	pool        *transfer.Pool
	scheduler   *transfer.RetryScheduler
	fetcher     *fetch.HTTPFetcher
	peerFetcher *fetch.HTTPFetcher
	muxer       postprocess.Muxer
	env         transfer.Env
	serviceID   string

	mu       sync.Mutex
	torrents downloads.TorrentEngine
	closers  []func() error
}

// New wires the engine. Work runs until ctx is done or Close is called.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tcfg, err := cfg.TransferConfig()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{tcfg.DataDir, tcfg.TempDir} {
		if err := util.EnsureDirectory(dir); err != nil {
			return nil, err
		}
	}

	serviceID := uuid.New().String()
	peers := peer.NewClient(serviceID)
	manager := transfer.NewManager(logger)
	manager.AddListener(metrics.NewListener())

	r := &Runtime{
		Manager:   manager,
		Library:   library.NewScanner(logger),
		Peers:     peers,
		cfg:       cfg,
		tcfg:      tcfg,
		logger:    logger,
		pool:      transfer.NewPool(ctx, tcfg.MaxConcurrentTransfers, logger),
		scheduler: transfer.NewRetryScheduler(logger),
		muxer:     postprocess.NewFFmpegMuxer(cfg.FFmpegPath, logger),
		serviceID: serviceID,
	}
	r.fetcher = fetch.NewHTTPFetcher(fetch.Options{
		Timeout:        tcfg.FetchTimeout,
		BufferSize:     tcfg.BufferSize,
		BandwidthLimit: tcfg.BandwidthLimit,
	}, logger)
	r.peerFetcher = fetch.NewHTTPFetcher(fetch.Options{
		Timeout:        tcfg.FetchTimeout,
		BufferSize:     tcfg.BufferSize,
		BandwidthLimit: tcfg.BandwidthLimit,
		Transport:      peers.Transport(),
	}, logger)
	r.env = transfer.Env{
		Registry:  manager,
		Executor:  r.pool,
		Scheduler: r.scheduler,
		Scanner:   r.Library,
		Logger:    logger,
		Config:    tcfg,
	}
	return r, nil
}

func (r *Runtime) Env() transfer.Env { return r.env }

func (r *Runtime) Config() Config { return r.cfg }

func (r *Runtime) ServiceID() string { return r.serviceID }

// AddURL starts a download picking the transfer kind from the URL
func (r *Runtime) AddURL(ctx context.Context, rawURL string) (transfer.Transfer, error) {
	return r.Add(ctx, Request{URL: rawURL})
}

// Add creates, registers and starts the transfer for req
func (r *Runtime) Add(ctx context.Context, req Request) (transfer.Transfer, error) {
	kind, err := classify(req.URL)
	if err != nil {
		return nil, err
	}

	var t transfer.Transfer
	switch kind {
	case sourceTorrent:
		engine, err := r.torrentEngine()
		if err != nil {
			return nil, err
		}
		t = downloads.NewTorrentFetcher(r.env, r.fetcher, engine, downloads.TorrentSource{URI: req.URL})
	default:
		t = downloads.NewHTTPDownload(r.env, r.fetcher, downloads.Link{
			URL:        req.URL,
			FileName:   req.FileName,
			Compressed: req.Compressed,
		}, r.tcfg.DataDir)
	}
	return r.launch(ctx, t)
}

// AddMedia starts a media download whose streams are assembled with ffmpeg
func (r *Runtime) AddMedia(ctx context.Context, src downloads.MediaSource) (transfer.Transfer, error) {
	d, err := downloads.NewMediaDownload(r.env, r.fetcher, r.muxer, src, r.tcfg.DataDir)
	if err != nil {
		return nil, err
	}
	return r.launch(ctx, d)
}

// Pull downloads one file from p's catalog
func (r *Runtime) Pull(ctx context.Context, p peer.Peer, name string) (transfer.Transfer, error) {
	files, err := r.Peers.Files(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.File.Name == name {
			return r.launch(ctx, downloads.NewPeerDownload(r.env, r.peerFetcher, f, r.tcfg.DataDir))
		}
	}
	return nil, fmt.Errorf("%w: %s", fileInfo.ErrNotInCatalog, name)
}

// PeerServer shares the configured directory. Uploads are tracked by the runtime's manager.
func (r *Runtime) PeerServer() (*peer.Server, error) {
	if err := util.EnsureDirectory(r.cfg.SharedDir); err != nil {
		return nil, err
	}
	return peer.NewServer(r.cfg.SharedDir, r.Manager, r.env, peer.ServerOptions{
		Slots:             r.cfg.UploadSlots,
		RequestsPerSecond: r.cfg.PeerRPS,
		Burst:             r.cfg.UploadSlots,
		ChunkSize:         r.tcfg.ChunkSize,
	})
}

func (r *Runtime) launch(ctx context.Context, t transfer.Transfer) (transfer.Transfer, error) {
	if err := r.Manager.Register(t); err != nil {
		return nil, err
	}
	if err := t.Start(ctx); err != nil {
		t.Remove(false)
		return nil, err
	}
	r.logger.Info("Transfer added", "id", t.ID(), "kind", string(t.Kind()), "name", t.DisplayName())
	return t, nil
}

func (r *Runtime) torrentEngine() (downloads.TorrentEngine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torrents != nil {
		return r.torrents, nil
	}
	e, err := torrent.NewEngine(torrent.Config{DataDir: r.tcfg.DataDir}, r.logger)
	if err != nil {
		return nil, err
	}
	r.torrents = e
	r.closers = append(r.closers, e.Close)
	return e, nil
}

// Close stops queued retries and running jobs, then shuts the torrent client down
func (r *Runtime) Close() error {
	r.scheduler.Stop()
	r.pool.Close()

	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

type sourceKind int

const (
	sourceHTTP sourceKind = iota
	sourceTorrent
)

func classify(raw string) (sourceKind, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return sourceHTTP, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "magnet":
		return sourceTorrent, nil
	case "http", "https":
		if u.Host == "" {
			break
		}
		if strings.HasSuffix(strings.ToLower(u.Path), ".torrent") {
			return sourceTorrent, nil
		}
		return sourceHTTP, nil
	}
	return sourceHTTP, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
}
