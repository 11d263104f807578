// Package torrent delegates BitTorrent payloads to anacrolix/torrent.
package torrent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/rescp17/transferkit/pkg/transfer"
)

// metadataTimeout caps the wait for magnet metadata when the caller sets no deadline
const metadataTimeout = 10 * time.Minute

var ErrEngineClosed = errors.New("torrent engine closed")

// Config configures the engine
type Config struct {
	DataDir      string
	PollInterval time.Duration
	// NoUpload keeps the client leech-only
	NoUpload bool
}

// Engine wraps an anacrolix client shared by every torrent transfer
type Engine struct {
	client *torrent.Client
	cfg    Config
	logger *slog.Logger

	// ctx ends every poller when the engine closes
	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewEngine starts a client that stores payloads under cfg.DataDir
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}
	clientConfig.NoUpload = cfg.NoUpload

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("start torrent client: %w", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Engine{client: client, cfg: cfg, logger: logger.With("component", "torrent"), ctx: ctx, stop: stop}, nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// FetchMagnet resolves a magnet link and returns the encoded .torrent. The metadata-only torrent
// is dropped once its info is known.
func (e *Engine) FetchMagnet(ctx context.Context, uri string) ([]byte, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	t, err := e.client.AddMagnet(uri)
	if err != nil {
		return nil, fmt.Errorf("add magnet: %w", err)
	}
	defer t.Drop()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, metadataTimeout)
		defer cancel()
	}
	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for metadata: %w", ctx.Err())
	}

	mi := t.Metainfo()
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode metainfo: %w", err)
	}
	e.logger.Info("Magnet resolved", "name", t.Name(), "infohash", t.InfoHash().HexString())
	return buf.Bytes(), nil
}

// Download adds the torrent described by torrentFile and returns a transfer that has not been
// started yet
func (e *Engine) Download(ctx context.Context, torrentFile []byte, env transfer.Env) (transfer.Transfer, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	mi, err := metainfo.Load(bytes.NewReader(torrentFile))
	if err != nil {
		return nil, fmt.Errorf("parse torrent: %w", err)
	}
	t, err := e.client.AddTorrent(mi)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}
	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		t.Drop()
		return nil, ctx.Err()
	}
	d := NewDownload(env, clientHandle{t}, e.dataDir(env), e.cfg.PollInterval)
	if e.ctx != nil {
		d.lifetime = e.ctx
	}
	return d, nil
}

func (e *Engine) dataDir(env transfer.Env) string {
	if e.cfg.DataDir != "" {
		return e.cfg.DataDir
	}
	return env.Config.DataDir
}

// Close shuts the client down. Transfers still running stop receiving data.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.stop()
	return errors.Join(e.client.Close()...)
}

// clientHandle adapts an anacrolix torrent to Handle
type clientHandle struct {
	*torrent.Torrent
}

func (h clientHandle) Counters() (read, written int64) {
	stats := h.Stats()
	return stats.BytesReadUsefulData.Int64(), stats.BytesWrittenData.Int64()
}
