package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dnssdlog "github.com/brutella/dnssd/log"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/internal/app"
)

var version = "dev"

func main() {
	cfg := app.LoadConfig()

	cmd := &cobra.Command{
		Use:     "transferkit",
		Short:   "Download over HTTP, BitTorrent and from peers on the local network",
		Version: version,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory finished downloads are saved to")
	flags.StringVar(&cfg.SharedDir, "shared-dir", cfg.SharedDir, "Directory shared with peers")
	flags.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Directory for intermediate media files")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flags.IntVar(&cfg.MaxConcurrent, "max-concurrent", cfg.MaxConcurrent, "Transfers running at the same time")
	flags.Int64Var(&cfg.BandwidthLimit, "bandwidth-limit", cfg.BandwidthLimit, "Download cap in bytes per second, 0 for none")

	cmd.AddCommand(
		newGetCmd(&cfg),
		newMediaCmd(&cfg),
		newServeCmd(&cfg),
		newPeersCmd(&cfg),
		newPullCmd(&cfg),
	)

	// the responder logs every packet
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, cmd); err != nil {
		os.Exit(1)
	}
}

// fileLogger writes to debug.log so log lines do not tear the TUI
func fileLogger(cfg app.Config) (*slog.Logger, func()) {
	f, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return app.NewLogger(io.Discard, cfg.LogLevel, cfg.LogFormat), func() {}
	}
	return app.NewLogger(f, cfg.LogLevel, cfg.LogFormat), func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}
}

func stderrLogger(cfg app.Config) *slog.Logger {
	return app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}
