// Command spacesaverd runs the SpaceSaver background re-encoding service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spacesaver/internal/config"
	"spacesaver/internal/daemon"
	"spacesaver/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, path, _, err := config.Load("")
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Printf("init logger: %v", err)
		return 1
	}
	logger.Info("spacesaverd: configuration loaded", logging.String("path", path))

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("spacesaverd: create daemon", logging.Error(err))
		return 1
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("spacesaverd: close daemon", logging.Error(err))
		}
	}()

	if err := d.Start(ctx); err != nil {
		logger.Error("spacesaverd: start daemon", logging.Error(err))
		return 1
	}

	<-ctx.Done()
	logger.Info("spacesaverd: shutting down")

	grace := time.Duration(cfg.Daemon.ShutdownGracePeriodSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
	defer cancel()
	d.Stop(shutdownCtx)

	return 0
}
