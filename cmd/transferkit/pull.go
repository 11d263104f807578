package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/pkg/peer"
)

func newPullCmd(cfg *app.Config) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "pull HOST:PORT NAME...",
		Short: "Download files from a peer's catalog",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := peer.Parse(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, closeRuntime, err := openRuntime(ctx, *cfg, plain)
			if err != nil {
				return err
			}
			defer closeRuntime()

			for _, name := range args[1:] {
				if _, err := rt.Pull(ctx, p, name); err != nil {
					return fmt.Errorf("failed to pull %s from %s: %w", name, p, err)
				}
			}
			return follow(ctx, rt.Manager, plain, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress bars instead of the interactive view")
	return cmd
}
