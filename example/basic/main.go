package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro"
)

// Runs the edge runtime described by the example config with a console logger.
func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	cfg, err := electro.LoadConfig("../../config.example.yaml")
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.ValidateRuntime(); err != nil {
		logger.Fatal("config cannot start a runtime", zap.Error(err))
	}

	rt, err := electro.NewEdgeRuntime(cfg, electro.WithLogger(logger))
	if err != nil {
		logger.Fatal("build runtime", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		logger.Error("edge runtime exited", zap.Error(err))
		os.Exit(1)
	}
}
