package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/pkg/downloads"
)

func newMediaCmd(cfg *app.Config) *cobra.Command {
	var (
		plain               bool
		video, audio        string
		name, title, author string
	)
	cmd := &cobra.Command{
		Use:   "media --name FILE [--video URL] [--audio URL]",
		Short: "Download separate video and audio streams and mux them into one file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if video == "" && audio == "" {
				return errors.New("at least one of --video or --audio is required")
			}
			src := downloads.MediaSource{
				FileName:    name,
				DisplayName: title,
				Author:      author,
			}
			if video != "" {
				src.Video = &downloads.Track{URL: video}
				src.SourceURL = video
			}
			if audio != "" {
				src.Audio = &downloads.Track{URL: audio}
				if src.SourceURL == "" {
					src.SourceURL = audio
				}
			}

			ctx := cmd.Context()
			rt, closeRuntime, err := openRuntime(ctx, *cfg, plain)
			if err != nil {
				return err
			}
			defer closeRuntime()

			if _, err := rt.AddMedia(ctx, src); err != nil {
				return fmt.Errorf("failed to add media: %w", err)
			}
			return follow(ctx, rt.Manager, plain, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&plain, "plain", false, "Print progress bars instead of the interactive view")
	flags.StringVar(&video, "video", "", "URL of the video stream")
	flags.StringVar(&audio, "audio", "", "URL of the audio stream")
	flags.StringVar(&name, "name", "", "Output file name including extension")
	flags.StringVar(&title, "title", "", "Title shown while downloading")
	flags.StringVar(&author, "author", "", "Author written to the file metadata")
	flags.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to the ffmpeg binary")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
