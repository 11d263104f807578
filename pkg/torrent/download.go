package torrent

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rescp17/transferkit/pkg/transfer"
)

// DefaultPollInterval is how often a torrent transfer samples the client
const DefaultPollInterval = time.Second

// Handle is the part of a client torrent a transfer reads
type Handle interface {
	Name() string
	Length() int64
	BytesCompleted() int64
	// Counters returns the useful payload bytes read from and written to peers
	Counters() (read, written int64)
	DownloadAll()
	DisallowDataDownload()
	AllowDataDownload()
	Seeding() bool
	Drop()
}

// Download follows a torrent the client is fetching. Progress comes from the client, not from
// data callbacks.
type Download struct {
	*transfer.Base
	h        Handle
	interval time.Duration
	upload   *transfer.ThroughputMeter
	// lifetime bounds the poller; the engine cancels it on Close
	lifetime context.Context
}

// NewDownload wraps h. The payload lands in saveDir under the torrent name.
func NewDownload(env transfer.Env, h Handle, saveDir string, interval time.Duration) *Download {
	env = env.WithDefaults()
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	savePath := filepath.Join(saveDir, h.Name())
	d := &Download{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindTorrent,
			DisplayName: h.Name(),
			SavePath:    savePath,
			TotalSize:   h.Length(),
			Direction:   transfer.Download,
			Initial:     transfer.StateWaiting,
		}),
		h:        h,
		interval: interval,
		upload:   transfer.NewThroughputMeter(env.Config.SpeedInterval, env.Clock(), 0),
		lifetime: context.Background(),
	}
	d.Bind(d)
	d.OnRemove(h.Drop)
	d.SetCleanup(func() error { return transfer.RemovePaths(savePath) })
	return d
}

func (d *Download) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.ClaimStart(); err != nil {
		return err
	}
	if !d.Transition(transfer.StateDownloading) {
		return nil
	}
	d.h.DownloadAll()
	// the client moves the data; the poller only samples it, so it stays off the bounded pool
	go d.watch(d.BindContext(d.lifetime))
	return nil
}

// watch samples the client until the transfer is removed. Seeding after completion keeps the
// upload rate current.
func (d *Download) watch(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

// Pause stops requesting pieces. Peers can still be served.
func (d *Download) Pause() bool {
	if !d.Transition(transfer.StatePaused) {
		return false
	}
	d.h.DisallowDataDownload()
	return true
}

// Resume requests pieces again after Pause
func (d *Download) Resume() bool {
	if d.State() != transfer.StatePaused {
		return false
	}
	d.h.AllowDataDownload()
	return d.Transition(transfer.StateDownloading)
}

// IsSeeding reports whether the finished torrent is uploading to peers
func (d *Download) IsSeeding() bool {
	return d.IsComplete() && d.h.Seeding()
}

// poll copies the client counters into the transfer and finishes it once nothing is missing
func (d *Download) poll() {
	_, written := d.h.Counters()
	d.upload.Sample(written, d.Env().Clock())

	if d.State().IsTerminal() {
		return
	}
	completed := d.h.BytesCompleted()
	d.SetBytes(completed)
	if d.State() == transfer.StatePaused {
		return
	}
	if length := d.h.Length(); length > 0 && completed >= length {
		d.Finish()
	}
}

func (d *Download) UploadRate() int64 {
	if d.State() == transfer.StateCanceled {
		return 0
	}
	return d.upload.Rate()
}
