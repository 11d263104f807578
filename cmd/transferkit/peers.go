package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/internal/util"
	"github.com/rescp17/transferkit/pkg/discovery"
	"github.com/rescp17/transferkit/pkg/peer"
)

func newPeersCmd(cfg *app.Config) *cobra.Command {
	var (
		wait  time.Duration
		files bool
	)
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List peers announcing on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adapter := &discovery.MDNSAdapter{Logger: stderrLogger(*cfg)}
			services, err := discovery.Browse(ctx, adapter, discovery.ServiceName(discovery.DefaultServiceType, discovery.DefaultDomain), wait)
			if err != nil {
				return fmt.Errorf("failed to browse peers: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(services) == 0 {
				fmt.Fprintln(out, "No peers found")
				return nil
			}

			peers := make([]peer.Peer, 0, len(services))
			data := make([][]string, 0, len(services))
			for _, s := range services {
				p := peer.FromService(s)
				peers = append(peers, p)
				data = append(data, []string{p.Name, s.HostPort(), s.Name})
			}
			renderTable(out, []string{"NAME", "ADDRESS", "INSTANCE"}, data)

			if !files {
				return nil
			}
			client := peer.NewClient(uuid.New().String())
			for _, p := range peers {
				list, err := client.Files(ctx, p)
				fmt.Fprintf(out, "\n%s\n", p)
				if err != nil {
					fmt.Fprintf(out, "  %v\n", err)
					continue
				}
				rows := make([][]string, 0, len(list))
				for _, f := range list {
					rows = append(rows, []string{f.File.Name, util.FormatSize(f.File.Size), f.File.MimeType})
				}
				renderTable(out, []string{"FILE", "SIZE", "TYPE"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "How long to listen for announcements")
	cmd.Flags().BoolVar(&files, "files", false, "Also list each peer's shared files")
	return cmd
}

func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(data)
	table.Render()
}
