package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rescp17/transferkit/api"
	"github.com/rescp17/transferkit/internal/app"
	"github.com/rescp17/transferkit/internal/metrics"
	"github.com/rescp17/transferkit/internal/telemetry"
	"github.com/rescp17/transferkit/pkg/discovery"
	"github.com/rescp17/transferkit/pkg/peer"
)

func newServeCmd(cfg *app.Config) *cobra.Command {
	var (
		announce bool
		push     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and share a directory with peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg, announce, push)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "Address the API listens on")
	flags.StringVar(&cfg.PeerName, "name", cfg.PeerName, "Name announced to other peers")
	flags.IntVar(&cfg.UploadSlots, "upload-slots", cfg.UploadSlots, "Files streamed to peers at the same time")
	flags.BoolVar(&announce, "announce", true, "Announce the service with mDNS")
	flags.DurationVar(&push, "push-interval", time.Second, "How often websocket clients receive a snapshot")
	return cmd
}

func serve(ctx context.Context, cfg app.Config, announce bool, push time.Duration) error {
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Init(ctx, "transferkit", version)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Runtime did not close cleanly", "error", err)
		}
	}()

	metrics.Register(prometheus.DefaultRegisterer)

	peerServer, err := rt.PeerServer()
	if err != nil {
		return fmt.Errorf("failed to share %s: %w", cfg.SharedDir, err)
	}

	apiServer := api.NewServer(rt.Manager, rt,
		api.WithLogger(logger),
		api.WithPeerHandler(peerServer),
		api.WithLibrary(rt.Library),
		api.WithBroadcastInterval(push),
		api.WithMetricsHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})),
	)
	defer apiServer.Close()

	go apiServer.Run(ctx)
	go peerServer.Watch(ctx, 30*time.Second)
	go metrics.Observe(ctx, rt.Manager, cfg.MetricsEvery)

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if announce {
		adapter := &discovery.MDNSAdapter{Logger: logger}
		info := discovery.ServiceInfo{
			Name:   fmt.Sprintf("%s-%s", cfg.PeerName, rt.ServiceID()[:8]),
			Type:   discovery.DefaultServiceType,
			Domain: discovery.DefaultDomain,
			Port:   port,
			Text:   map[string]string{peer.TextKeyName: cfg.PeerName},
		}
		go func() {
			if err := adapter.Announce(ctx, info); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mDNS announce stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", "addr", listener.Addr().String(), "data_dir", cfg.DataDir, "shared_dir", cfg.SharedDir, "version", version)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", "error", err)
	}
	return nil
}
