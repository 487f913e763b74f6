package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nexonsite/internal/adapters/site"
	"nexonsite/internal/auth"
	"nexonsite/internal/blob"
	"nexonsite/internal/chat"
	"nexonsite/internal/core"
	"nexonsite/internal/livedata"
	"nexonsite/internal/media"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, media host and live update server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, nil)
	},
}

// runServe wires every component and serves until ctx ends. When ready is
// non-nil it receives the bound listener address.
func runServe(ctx context.Context, ready chan<- string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := core.NewPrometheusMetrics(reg)
	if err != nil {
		return err
	}

	svc, closeStore, err := openService(
		core.WithAuditRecorder(core.NewZapAuditRecorder(logger)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder(prom, core.NewExpvarMetricsRecorder(""))),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open %s media store: %w", cfg.Blob.Driver, err)
	}
	proxy, err := chat.NewGeminiProxy(ctx, cfg.Chat, logger.Named("chat"))
	if err != nil {
		return err
	}
	if !proxy.Configured() {
		logger.Warn("GEMINI_API_KEY not set; /api/chat will answer 500")
	}
	var signer *auth.Signer
	if cfg.Auth.Secret != "" {
		signer = auth.NewSigner(cfg.Auth.Secret)
	} else {
		logger.Warn("NEXONSITE_AUTH_SECRET not set; content writes are disabled")
	}

	emitter := livedata.NewEmitter()
	uninstall := livedata.InstallErrorListener(emitter, logger.Named("live"), cfg.Live.Strict)
	defer uninstall()

	handler := site.NewHandler(site.Deps{
		Service:  svc,
		Uploader: media.NewUploader(blobs, media.WithLogger(logger.Named("media"))),
		Chat:     proxy,
		Media:    blobs,
		Auth:     signer,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Live: []livedata.Option{
			livedata.WithEmitter(emitter),
			livedata.WithMetrics(prom),
			livedata.WithLoadTimeout(cfg.Live.LoadTimeout),
		},
		Logger: logger,
	})
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", handler)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", zap.String("addr", ln.Addr().String()),
			zap.String("storage", string(cfg.Storage.Driver)), zap.String("media", string(blobs.Driver())))
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
