package downloads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescp17/transferkit/pkg/postprocess"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// MediaKind selects how the streams of a media download are assembled
type MediaKind int

const (
	// MediaVideo is a single stream that already carries audio
	MediaVideo MediaKind = iota
	// MediaDash is separate video and audio streams merged after both arrive
	MediaDash
	// MediaDemux is an audio stream extracted into an audio-only file
	MediaDemux
)

func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaDash:
		return "dash"
	case MediaDemux:
		return "demux"
	default:
		return "unknown"
	}
}

var (
	ErrNoTracks      = errors.New("media source has no tracks")
	ErrMissingStages = errors.New("no stage output found")
)

// Track is one remote media stream
type Track struct {
	URL  string
	Size int64
}

// MediaSource describes a media item and its streams
type MediaSource struct {
	Video       *Track
	Audio       *Track
	FileName    string // final file name including extension
	DisplayName string
	Author      string
	SourceURL   string
}

// Kind derives how the source will be assembled
func (s MediaSource) Kind() (MediaKind, error) {
	switch {
	case s.Video != nil && s.Audio != nil:
		return MediaDash, nil
	case s.Video != nil:
		return MediaVideo, nil
	case s.Audio != nil:
		return MediaDemux, nil
	default:
		return 0, ErrNoTracks
	}
}

// MediaDownload fetches one or two streams into temp files and assembles the final file
type MediaDownload struct {
	*transfer.Base
	src          MediaSource
	kind         MediaKind
	muxer        postprocess.Muxer
	tempVideo    string
	tempAudio    string
	completeFile string
	job          *fetchJob
}

// NewMediaDownload prepares a media download. The final name is made unique inside saveDir.
func NewMediaDownload(env transfer.Env, fetcher Fetcher, muxer postprocess.Muxer, src MediaSource, saveDir string) (*MediaDownload, error) {
	kind, err := src.Kind()
	if err != nil {
		return nil, err
	}
	env = env.WithDefaults()

	name := src.FileName
	if name == "" {
		name = fallbackFileName + ".mp4"
	}
	completeFile := UniqueFileName(saveDir, CleanFileName(name))
	stem := strings.TrimSuffix(filepath.Base(completeFile), filepath.Ext(completeFile))

	display := src.DisplayName
	if display == "" {
		display = stem
	}

	d := &MediaDownload{
		Base: transfer.NewBase(env, transfer.BaseOptions{
			Kind:        transfer.KindMedia,
			DisplayName: display,
			SavePath:    completeFile,
			TotalSize:   totalSize(src),
			Direction:   transfer.Download,
			Initial:     transfer.StateWaiting,
		}),
		src:          src,
		kind:         kind,
		muxer:        muxer,
		tempVideo:    filepath.Join(env.Config.TempDir, stem+".video"),
		tempAudio:    filepath.Join(env.Config.TempDir, stem+".audio"),
		completeFile: completeFile,
	}
	d.Bind(d)
	d.SetCleanup(func() error {
		return transfer.RemovePaths(d.tempVideo, d.tempAudio, d.completeFile)
	})
	d.job = newFetchJob(d.Base, fetcher, "", "", d.fetched)
	return d, nil
}

func totalSize(src MediaSource) int64 {
	var total int64
	for _, t := range []*Track{src.Video, src.Audio} {
		if t == nil {
			continue
		}
		if t.Size <= 0 {
			return -1
		}
		total += t.Size
	}
	return total
}

// MediaKind reports how the streams are assembled
func (d *MediaDownload) MediaKind() MediaKind { return d.kind }

// TempFiles returns the stage outputs
func (d *MediaDownload) TempFiles() (video, audio string) { return d.tempVideo, d.tempAudio }

// Start queues the first stage: the video stream, or the audio stream for demux downloads
func (d *MediaDownload) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.ClaimStart(); err != nil {
		return err
	}
	if d.kind == MediaDemux {
		d.job.begin(d.src.Audio.URL, d.tempAudio)
	} else {
		d.job.begin(d.src.Video.URL, d.tempVideo)
	}
	return nil
}

func (d *MediaDownload) metadata() postprocess.Metadata {
	return postprocess.Metadata{
		Title:  d.DisplayName(),
		Author: d.src.Author,
		Source: d.src.SourceURL,
	}
}

func (d *MediaDownload) fetched(ctx context.Context) {
	switch d.kind {
	case MediaVideo:
		if err := os.MkdirAll(filepath.Dir(d.completeFile), 0o755); err != nil {
			d.Fail(err)
			return
		}
		if err := os.Rename(d.tempVideo, d.completeFile); err != nil {
			d.Fail(fmt.Errorf("move into place: %w", err))
			return
		}
		d.Finish()

	case MediaDemux:
		d.assemble(ctx, func() error {
			return d.muxer.DemuxAudio(ctx, d.tempAudio, d.completeFile, d.metadata())
		})

	case MediaDash:
		videoDone, audioDone := fileExists(d.tempVideo), fileExists(d.tempAudio)
		switch {
		case videoDone && !audioDone:
			d.Logger().Debug("Video stage done, fetching audio")
			d.job.begin(d.src.Audio.URL, d.tempAudio)
		case videoDone && audioDone:
			d.assemble(ctx, func() error {
				return d.muxer.Mux(ctx, d.tempVideo, d.tempAudio, d.completeFile, d.metadata())
			})
		default:
			d.Fail(fmt.Errorf("%w: %s", ErrMissingStages, d.DisplayName()))
		}
	}
}

// assemble runs a demux stage and finishes. Failure cleans every stage output.
func (d *MediaDownload) assemble(ctx context.Context, run func() error) {
	if !d.Transition(transfer.StateDemuxing) {
		return
	}
	if err := os.MkdirAll(filepath.Dir(d.completeFile), 0o755); err != nil {
		d.Fail(&transfer.PostProcessingError{Stage: transfer.StateDemuxing, Err: err})
		return
	}
	if err := run(); err != nil {
		d.Fail(&transfer.PostProcessingError{Stage: transfer.StateDemuxing, Err: err})
		return
	}
	if err := transfer.RemovePaths(d.tempVideo, d.tempAudio); err != nil {
		d.Logger().Debug("Temp cleanup failed", "error", err)
	}
	if d.State() == transfer.StateCanceled {
		return
	}
	d.Finish()
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
