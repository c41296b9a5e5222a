package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"prohori/internal/components"
	"prohori/internal/config"
)

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config failed", slog.Any("error", err))
		return err
	}
	logger := components.SetupLogger(cfg.Env)
	if cfg.APIKey == "" && cfg.Auth.AdminEmail == "" {
		return fmt.Errorf("neither API_KEY nor ADMIN_EMAIL is set, admin routes would be unreachable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := components.InitComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not init components", slog.Any("error", err))
		return err
	}

	// the writer outlives the HTTP server so in-flight requests can finish
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		comps.Writer.Run(writerCtx)
		close(writerDone)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := comps.HttpServer.Run(gctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	if comps.Dispatcher != nil {
		g.Go(func() error {
			return comps.Dispatcher.Run(gctx)
		})
	}

	<-gctx.Done()
	logger.Info("initiating shutdown", slog.String("reason", context.Cause(gctx).Error()))

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("service failed", slog.Any("error", runErr))
	}

	stopWriter()
	<-writerDone

	comps.ShutdownAll()
	logger.Info("gracefully shut down")

	return runErr
}
