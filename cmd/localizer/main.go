package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jo-hoe/content-localizer/internal/blob"
	"github.com/jo-hoe/content-localizer/internal/common"
	appcfg "github.com/jo-hoe/content-localizer/internal/config"
	"github.com/jo-hoe/content-localizer/internal/dispatch"
	"github.com/jo-hoe/content-localizer/internal/jobs"
	"github.com/jo-hoe/content-localizer/internal/localize"
	"github.com/jo-hoe/content-localizer/internal/localize/aiproxy"
	"github.com/jo-hoe/content-localizer/internal/localize/mock"
	"github.com/jo-hoe/content-localizer/internal/processor"
	"github.com/jo-hoe/content-localizer/internal/server"
)

func main() {
	cfg, err := appcfg.Load("")
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	// Change feed and record store
	feed := jobs.NewFeed(cfg.Dispatch.FeedCapacity)
	store, err := jobs.NewSQLiteStore(cfg.Server.DatabasePath, feed)
	if err != nil {
		logger.Error("sqlite open", "err", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	// Blob store
	blobs := blob.NewFSStore(cfg.Server.StorageDir, common.PathBlobs)

	// Transform provider
	var transform localize.Transformer
	switch strings.ToLower(cfg.LLM.Provider) {
	case "mock":
		transform = mock.New(cfg.LLM.Mock)
	case "aiproxy":
		transform = aiproxy.New(cfg.LLM.AIProxy)
	default:
		logger.Error("unsupported llm provider", "provider", cfg.LLM.Provider)
		os.Exit(1)
	}

	// Lifecycle manager and dispatcher
	manager := processor.New(logger, store, blobs, transform)
	dispatcher := dispatch.New(logger, store, blobs, manager, cfg.Dispatch.BatchSize)

	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go dispatcher.Run(rootCtx, feed)

	// HTTP server
	svc := &server.Service{
		Log:        logger,
		Cfg:        cfg,
		Store:      store,
		Blobs:      blobs,
		Dispatcher: dispatcher,
	}
	httpSrv := server.NewHTTPServer(svc)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "address", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "err", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	// Let in-flight direct invocations finish before closing the store.
	dispatcher.Wait()
	feed.Close()
	logger.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
