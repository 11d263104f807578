package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/internal/app"
)

// openRuntime builds the runtime for a one-shot command. Logs go to debug.log
// while the TUI owns the terminal.
func openRuntime(ctx context.Context, cfg app.Config, plain bool) (*app.Runtime, func(), error) {
	var (
		logger  *slog.Logger
		closeFn = func() {}
	)
	if plain {
		logger = stderrLogger(cfg)
	} else {
		logger, closeFn = fileLogger(cfg)
	}
	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return rt, func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Runtime did not close cleanly", "error", err)
		}
		closeFn()
	}, nil
}

func newGetCmd(cfg *app.Config) *cobra.Command {
	var (
		plain      bool
		compressed bool
		name       string
	)
	cmd := &cobra.Command{
		Use:   "get URL...",
		Short: "Download files over HTTP, magnet links or .torrent URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return errors.New("--name only applies to a single URL")
			}
			ctx := cmd.Context()
			rt, closeRuntime, err := openRuntime(ctx, *cfg, plain)
			if err != nil {
				return err
			}
			defer closeRuntime()

			for _, u := range args {
				if _, err := rt.Add(ctx, app.Request{URL: u, FileName: name, Compressed: compressed}); err != nil {
					return fmt.Errorf("%s: %w", u, err)
				}
			}
			return follow(ctx, rt.Manager, plain, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress bars instead of the interactive view")
	cmd.Flags().BoolVar(&compressed, "compressed", false, "Inflate a zstd compressed body while saving")
	cmd.Flags().StringVar(&name, "name", "", "File name to save a single download as")
	return cmd
}
