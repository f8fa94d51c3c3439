package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"storefront-access-gate/config"
	"storefront-access-gate/logger"
	"storefront-access-gate/metrics"
	"storefront-access-gate/relay"
	"storefront-access-gate/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Unable to load config: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "gate-relay")
	if err != nil {
		stdlog.Fatalf("Unable to create logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(cfg.Temporal.ClientOptions(logger.NewTemporalLogger(log)))
	if err != nil {
		log.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	redisClient := store.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Unable to reach Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	r := relay.New(store.NewFeed(redisClient, log, m), c, log, m)
	if err := r.Run(ctx); err != nil {
		log.Fatal("Relay failed", zap.Error(err))
	}
}
