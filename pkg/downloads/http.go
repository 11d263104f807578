package downloads

import (
	"context"
	"path/filepath"

	"github.com/rescp17/transferkit/pkg/postprocess"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// Link describes a file reachable over HTTP
type Link struct {
	URL         string
	FileName    string // defaults to the last URL path segment
	DisplayName string
	Size        int64 // -1 or 0 when unknown
	Compressed  bool  // extract the zip once fetched
}

// HTTPDownload fetches one URL into the save directory
type HTTPDownload struct {
	*transfer.Base
	link       Link
	archiveDir string
	job        *fetchJob
}

// NewHTTPDownload prepares a download. It does nothing until Start.
func NewHTTPDownload(env transfer.Env, fetcher Fetcher, link Link, saveDir string) *HTTPDownload {
	name := link.FileName
	if name == "" {
		name = FileNameFromURL(link.URL)
	}
	name = CleanFileName(name)
	display := link.DisplayName
	if display == "" {
		display = name
	}
	size := link.Size
	if size <= 0 {
		size = -1
	}
	savePath := filepath.Join(saveDir, name)

	d := &HTTPDownload{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindHTTP,
			DisplayName: display,
			SavePath:    savePath,
			TotalSize:   size,
			Direction:   transfer.Download,
			Initial:     transfer.StateWaiting,
		}),
		link: link,
	}
	if link.Compressed {
		d.archiveDir = postprocess.ArchiveDir(savePath)
	}
	d.Bind(d)
	d.SetCleanup(func() error {
		return transfer.RemovePaths(savePath, d.archiveDir)
	})
	d.job = newFetchJob(d.Base, fetcher, link.URL, savePath, d.fetched)
	return d
}

// Start queues the fetch. It can be called once.
func (d *HTTPDownload) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.ClaimStart(); err != nil {
		return err
	}
	d.job.begin(d.link.URL, d.job.dst)
	return nil
}

func (d *HTTPDownload) fetched(ctx context.Context) {
	if !d.link.Compressed {
		d.Finish()
		return
	}
	if !d.Transition(transfer.StateUncompressing) {
		return
	}
	archive := d.SavePath()
	if _, err := postprocess.Unzip(ctx, archive, d.archiveDir); err != nil {
		d.Fail(&transfer.PostProcessingError{Stage: transfer.StateUncompressing, Err: err})
		return
	}
	d.SetSavePath(d.archiveDir)
	d.Finish()
}
