package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Metadata tags written into muxed media files
type Metadata struct {
	Title  string
	Author string
	Source string
}

func (m Metadata) args() []string {
	var args []string
	if m.Title != "" {
		args = append(args, "-metadata", "title="+m.Title)
	}
	if m.Author != "" {
		args = append(args, "-metadata", "artist="+m.Author)
	}
	if m.Source != "" {
		args = append(args, "-metadata", "comment="+m.Source)
	}
	return args
}

// Muxer combines or extracts media streams
type Muxer interface {
	Mux(ctx context.Context, video, audio, out string, meta Metadata) error
	DemuxAudio(ctx context.Context, audio, out string, meta Metadata) error
}

// FFmpegMuxer shells out to ffmpeg with stream copy, so no re-encoding happens
type FFmpegMuxer struct {
	Binary string
	Logger *slog.Logger
}

// NewFFmpegMuxer returns a muxer using binary, "ffmpeg" when empty
func NewFFmpegMuxer(binary string, logger *slog.Logger) *FFmpegMuxer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegMuxer{Binary: binary, Logger: logger}
}

// MuxArgs builds the ffmpeg arguments that merge a video-only and an audio-only file
func MuxArgs(video, audio, out string, meta Metadata) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-i", video, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0", "-c", "copy"}
	args = append(args, meta.args()...)
	return append(args, out)
}

// DemuxArgs builds the ffmpeg arguments that extract the audio stream of a file
func DemuxArgs(audio, out string, meta Metadata) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-i", audio, "-vn", "-c:a", "copy"}
	args = append(args, meta.args()...)
	return append(args, out)
}

func (m *FFmpegMuxer) Mux(ctx context.Context, video, audio, out string, meta Metadata) error {
	return m.run(ctx, MuxArgs(video, audio, out, meta))
}

func (m *FFmpegMuxer) DemuxAudio(ctx context.Context, audio, out string, meta Metadata) error {
	return m.run(ctx, DemuxArgs(audio, out, meta))
}

func (m *FFmpegMuxer) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, m.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	m.Logger.Debug("Running ffmpeg", "binary", m.Binary, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
