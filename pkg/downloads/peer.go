package downloads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/rescp17/transferkit/pkg/fileInfo"
	"github.com/rescp17/transferkit/pkg/transfer"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

// PeerFile is a catalog entry offered by a LAN peer
type PeerFile struct {
	Peer string
	URI  string
	File fileInfo.FileNode
}

// PeerDownload fetches a file shared by another peer and verifies its checksum
type PeerDownload struct {
	*transfer.Base
	src PeerFile
	job *fetchJob
}

// NewPeerDownload prepares a peer download into saveDir
func NewPeerDownload(env transfer.Env, fetcher Fetcher, src PeerFile, saveDir string) *PeerDownload {
	name := CleanFileName(path.Base(src.File.Name))
	savePath := filepath.Join(saveDir, name)
	size := src.File.Size
	if size <= 0 {
		size = -1
	}

	d := &PeerDownload{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindPeerHTTP,
			DisplayName: src.File.Name,
			SavePath:    savePath,
			TotalSize:   size,
			Direction:   transfer.Download,
			Initial:     transfer.StateWaiting,
		}),
		src: src,
	}
	d.Bind(d)
	d.SetCleanup(func() error { return transfer.RemovePaths(savePath) })
	d.job = newFetchJob(d.Base, fetcher, src.URI, savePath, d.fetched)
	return d
}

// Peer names the peer the file comes from
func (d *PeerDownload) Peer() string { return d.src.Peer }

func (d *PeerDownload) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.ClaimStart(); err != nil {
		return err
	}
	d.job.begin(d.src.URI, d.SavePath())
	return nil
}

func (d *PeerDownload) fetched(context.Context) {
	if d.src.File.Checksum == "" {
		d.Finish()
		return
	}
	if !d.Transition(transfer.StateVerifying) {
		return
	}
	ok, err := fileInfo.VerifyFile(d.SavePath(), d.src.File.Checksum)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", ErrChecksumMismatch, d.src.File.Name)
	}
	if err != nil {
		d.Fail(&transfer.PostProcessingError{Stage: transfer.StateVerifying, Err: err})
		return
	}
	d.Finish()
}

// PeerUpload tracks a file being served to another peer. It never deletes the shared file.
type PeerUpload struct {
	*transfer.Base
	remote string
}

// NewPeerUpload creates an upload that is already in progress
func NewPeerUpload(env transfer.Env, file fileInfo.FileNode, remote string) *PeerUpload {
	u := &PeerUpload{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindPeerUpload,
			DisplayName: file.Name,
			SavePath:    file.Path,
			TotalSize:   file.Size,
			Direction:   transfer.Upload,
			Initial:     transfer.StateUploading,
		}),
		remote: remote,
	}
	u.Bind(u)
	return u
}

// Remote is the address of the receiving peer
func (u *PeerUpload) Remote() string { return u.remote }

// Start only enforces the single-start rule; the upload is driven by the serving handler
func (u *PeerUpload) Start(context.Context) error {
	return u.ClaimStart()
}

// AddBytesSent counts served bytes and reports whether to keep sending
func (u *PeerUpload) AddBytesSent(n int) bool {
	return u.AddBytes(n)
}

// IsCanceled reports whether the user stopped the upload
func (u *PeerUpload) IsCanceled() bool {
	return u.State() == transfer.StateCanceled
}

// Complete marks the upload done and drops it from the registry
func (u *PeerUpload) Complete() {
	u.Finish()
	u.Remove(false)
}
