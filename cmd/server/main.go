package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/formflat/internal/api"
	"github.com/dgallion1/formflat/internal/config"
	"github.com/dgallion1/formflat/internal/forward"
	"github.com/dgallion1/formflat/internal/logging"
	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/dgallion1/formflat/internal/normalize"
	"github.com/dgallion1/formflat/internal/upload"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	uploader, err := upload.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("upload backend: %w", err)
	}

	normalizer := normalize.New(normalize.Options{
		Delimiter:     cfg.LabelDelimiter,
		MaxDepth:      cfg.MaxDepth,
		LenientRows:   cfg.LenientRows,
		UploadTimeout: cfg.UploadTimeout,
	}, uploader, m, log.Named("normalize"))

	dispatcher := forward.NewDispatcher(forward.Config{
		Workers:   cfg.ForwardWorkers,
		QueueSize: cfg.ForwardQueueSize,
		Timeout:   cfg.ForwardTimeout,
		Retries:   cfg.ForwardRetries,
	}, m, log.Named("forward"))
	dispatcher.Start(ctx)

	srv := api.NewServer(normalizer, dispatcher, m, log.Named("http"), cfg)

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			log.Warn("forward queue not drained", zap.Error(err), zap.Int("pending", dispatcher.QueueDepth()))
		}
	}()

	log.Info("starting formflat",
		zap.String("port", cfg.Port),
		zap.String("upload_backend", uploader.Name()),
		zap.Int("max_connections", cfg.MaxConnections),
	)
	if err := httpServer.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	<-stopped
	return nil
}
