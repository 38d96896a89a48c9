package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sekolahkita/internal/app"
	"sekolahkita/internal/config"
	"sekolahkita/internal/logging"
	"sekolahkita/internal/notification"
)

// Worker consumes queued notifications, delivers them and records the outcome.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.QueueBackend != "redis" {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the api delivers in process otherwise")
	}

	backends, err := app.Open(ctx, cfg, nil, log)
	if err != nil {
		log.WithError(err).Fatal("backend setup failed")
	}
	defer backends.Close()

	if !backends.Redis.Healthy(ctx) {
		log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable yet, will keep retrying")
	}

	workerLog := logging.Component(log, "worker")
	w := notification.NewWorker(backends.Queue, notification.LogSender{Log: workerLog}, backends.Store, workerLog)
	if err := w.Run(ctx); err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}
}
