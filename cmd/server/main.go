package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eternalApril/minikv/internal/config"
	"github.com/eternalApril/minikv/internal/logger"
	"github.com/eternalApril/minikv/internal/server"
	"github.com/eternalApril/minikv/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(".", flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	log.Info("minikv starting",
		zap.String("port", cfg.Server.Port),
		zap.Uint("shards", cfg.Storage.Shards),
		zap.Bool("aof", cfg.Persistence.AOF.Enabled),
		zap.String("fsync", cfg.Persistence.AOF.Fsync),
	)

	db, err := storage.NewShardedMapStorage(cfg.Storage.Shards)
	if err != nil {
		log.Error("cant initialize storage", zap.Error(err))
		return 1
	}

	engine, err := server.NewEngine(db, cfg, log)
	if err != nil {
		log.Error("cant restore state", zap.Error(err))
		return 1
	}
	defer engine.Shutdown()

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("listener error", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(engine, log)
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
	case err := <-served:
		log.Error("server stopped", zap.Error(err))
		return 1
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", cfg.Shutdown.Timeout))
	} else {
		log.Info("All connections closed gracefully")
	}

	log.Info("minikv stopped")
	return 0
}
