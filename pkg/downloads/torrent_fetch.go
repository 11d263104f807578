package downloads

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/rescp17/transferkit/pkg/transfer"
)

// TorrentEngine resolves torrent metadata and creates the transfer that downloads the payload
type TorrentEngine interface {
	FetchMagnet(ctx context.Context, uri string) ([]byte, error)
	Download(ctx context.Context, torrentFile []byte, env transfer.Env) (transfer.Transfer, error)
}

// BytesFetcher fetches small documents such as .torrent files
type BytesFetcher interface {
	Bytes(ctx context.Context, uri, referer string, limit int64) ([]byte, error)
}

// TorrentSource points at a .torrent file or a magnet link
type TorrentSource struct {
	URI         string
	DisplayName string
	Referer     string
	Size        int64
}

// IsMagnet reports whether the source is a magnet link
func (s TorrentSource) IsMagnet() bool {
	return strings.HasPrefix(strings.ToLower(s.URI), "magnet:")
}

// TorrentDisplayName picks a name for a torrent before its metadata is known: the magnet dn
// parameter, else the last URL segment.
func TorrentDisplayName(uri string) string {
	if strings.HasPrefix(strings.ToLower(uri), "magnet:") {
		if m, err := metainfo.ParseMagnetUri(uri); err == nil {
			if m.DisplayName != "" {
				return m.DisplayName
			}
			return m.InfoHash.HexString()
		}
		return uri
	}
	return FileNameFromURL(uri)
}

type fetchPhase interface {
	isFetchPhase()
}

// pendingPhase: metadata is still being fetched, the fetcher's own state applies
type pendingPhase struct{}

// resolvedPhase: the engine owns the payload download
type resolvedPhase struct {
	inner transfer.Transfer
}

func (pendingPhase) isFetchPhase()  {}
func (resolvedPhase) isFetchPhase() {}

// TorrentFetcher fetches torrent metadata and then hands the payload to the engine. Once
// resolved it reports the engine transfer's progress as its own.
type TorrentFetcher struct {
	*transfer.Base
	src     TorrentSource
	engine  TorrentEngine
	fetcher BytesFetcher

	mu    sync.RWMutex
	phase fetchPhase
}

// NewTorrentFetcher prepares a torrent fetch
func NewTorrentFetcher(env transfer.Env, fetcher BytesFetcher, engine TorrentEngine, src TorrentSource) *TorrentFetcher {
	display := src.DisplayName
	if display == "" {
		display = TorrentDisplayName(src.URI)
	}
	size := src.Size
	if size <= 0 {
		size = -1
	}
	f := &TorrentFetcher{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindTorrentFetch,
			DisplayName: display,
			TotalSize:   size,
			Direction:   transfer.Download,
			Initial:     transfer.StateWaiting,
		}),
		src:     src,
		engine:  engine,
		fetcher: fetcher,
		phase:   pendingPhase{},
	}
	f.Bind(f)
	return f
}

func (f *TorrentFetcher) current() fetchPhase {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.phase
}

// Inner returns the engine transfer once metadata has been resolved
func (f *TorrentFetcher) Inner() (transfer.Transfer, bool) {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner, true
	}
	return nil, false
}

func (f *TorrentFetcher) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.ClaimStart(); err != nil {
		return err
	}
	f.Env().Executor.Go("torrent-fetch:"+f.ID(), f.run)
	return nil
}

func (f *TorrentFetcher) run(ctx context.Context) {
	if !f.Transition(transfer.StateDownloadingTorrent) {
		return
	}
	ctx = f.BindContext(ctx)

	data, err := f.fetchMetadata(ctx)
	if err != nil {
		if ctx.Err() != nil || f.IsRemoved() {
			return
		}
		f.Fail(&transfer.PermanentTransportError{Err: err})
		return
	}

	inner, err := f.engine.Download(ctx, data, f.innerEnv())
	if err != nil {
		if ctx.Err() != nil || f.IsRemoved() {
			return
		}
		f.Fail(fmt.Errorf("start torrent: %w", err))
		return
	}

	f.mu.Lock()
	if f.IsRemoved() {
		f.mu.Unlock()
		inner.Remove(true)
		return
	}
	f.phase = resolvedPhase{inner: inner}
	f.mu.Unlock()

	f.Transition(transfer.StateDownloading)
	f.Logger().Info("Torrent metadata resolved", "name", inner.DisplayName())
	if err := inner.Start(ctx); err != nil {
		f.Fail(err)
	}
}

func (f *TorrentFetcher) fetchMetadata(ctx context.Context) ([]byte, error) {
	if f.src.IsMagnet() {
		return f.engine.FetchMagnet(ctx, f.src.URI)
	}
	return f.fetcher.Bytes(ctx, f.src.URI, f.src.Referer, f.Env().Config.MaxTorrentFileSize)
}

// innerEnv routes the engine transfer's events through the fetcher
func (f *TorrentFetcher) innerEnv() transfer.Env {
	env := f.Env()
	env.Registry = &proxyRegistry{outer: f, reg: env.Registry}
	return env
}

type proxyRegistry struct {
	outer transfer.Transfer
	reg   transfer.Registry
}

// Unregister is a no-op: the fetcher owns the registry entry
func (p *proxyRegistry) Unregister(string) {}

func (p *proxyRegistry) StateChanged(_ transfer.Transfer, from, to transfer.State) {
	p.reg.StateChanged(p.outer, from, to)
}

func (p *proxyRegistry) DownloadFinished(transfer.Transfer) {
	p.reg.DownloadFinished(p.outer)
}

func (f *TorrentFetcher) DisplayName() string {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.DisplayName()
	}
	return f.Base.DisplayName()
}

func (f *TorrentFetcher) State() transfer.State {
	switch p := f.current().(type) {
	case resolvedPhase:
		if f.Base.State() == transfer.StateError {
			return transfer.StateError
		}
		return p.inner.State()
	default:
		return f.Base.State()
	}
}

func (f *TorrentFetcher) TotalSize() int64 {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.TotalSize()
	}
	return f.Base.TotalSize()
}

func (f *TorrentFetcher) BytesTransferred() int64 {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.BytesTransferred()
	}
	return f.Base.BytesTransferred()
}

func (f *TorrentFetcher) SavePath() string {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.SavePath()
	}
	return f.Base.SavePath()
}

func (f *TorrentFetcher) DownloadRate() int64 {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.DownloadRate()
	}
	return f.Base.DownloadRate()
}

func (f *TorrentFetcher) UploadRate() int64 {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.UploadRate()
	}
	return f.Base.UploadRate()
}

func (f *TorrentFetcher) ProgressPercent() int {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.ProgressPercent()
	}
	return f.Base.ProgressPercent()
}

func (f *TorrentFetcher) EstimatedSecondsRemaining() int64 {
	if p, ok := f.current().(resolvedPhase); ok {
		return p.inner.EstimatedSecondsRemaining()
	}
	return f.Base.EstimatedSecondsRemaining()
}

func (f *TorrentFetcher) IsComplete() bool {
	return f.State() == transfer.StateComplete
}

func (f *TorrentFetcher) Err() error {
	if p, ok := f.current().(resolvedPhase); ok {
		if err := p.inner.Err(); err != nil {
			return err
		}
	}
	return f.Base.Err()
}

// Pause suspends the engine transfer. A fetch still resolving metadata cannot be paused.
func (f *TorrentFetcher) Pause() bool {
	if p, ok := f.current().(resolvedPhase); ok {
		if inner, ok := p.inner.(transfer.Pausable); ok {
			return inner.Pause()
		}
	}
	return false
}

func (f *TorrentFetcher) Resume() bool {
	if p, ok := f.current().(resolvedPhase); ok {
		if inner, ok := p.inner.(transfer.Pausable); ok {
			return inner.Resume()
		}
	}
	return false
}

func (f *TorrentFetcher) IsSeeding() bool {
	if p, ok := f.current().(resolvedPhase); ok {
		if inner, ok := p.inner.(transfer.Seeder); ok {
			return inner.IsSeeding()
		}
	}
	return false
}

// Remove stops the metadata fetch or the engine transfer, then unregisters the fetcher
func (f *TorrentFetcher) Remove(deleteData bool) {
	// marking the base removed first means run either sees the removal or has already
	// published the inner transfer
	f.Base.Remove(deleteData)

	f.mu.RLock()
	p, resolved := f.phase.(resolvedPhase)
	f.mu.RUnlock()
	if resolved {
		p.inner.Remove(deleteData)
	}
}
