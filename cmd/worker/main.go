package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/app"
	"github.com/elishakaranja/Mindset-coach/internal/config"
)

func main() {
	cfg := config.Load()
	log, err := app.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if err := a.RunWorker(ctx); err != nil {
		log.Error("worker stopped", zap.Error(err))
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
