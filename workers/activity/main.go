package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"storefront-access-gate/activities"
	"storefront-access-gate/config"
	"storefront-access-gate/logger"
	"storefront-access-gate/metrics"
	"storefront-access-gate/shared"
	"storefront-access-gate/store"
	"storefront-access-gate/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Unable to load config: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "gate-activity-worker")
	if err != nil {
		stdlog.Fatalf("Unable to create logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatal("Unable to apply schema", zap.Error(err))
	}

	redisClient := store.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	feed := store.NewFeed(redisClient, log, m)
	repo := store.NewRepository(db, feed, log)

	c, err := client.Dial(cfg.Temporal.ClientOptions(logger.NewTemporalLogger(log)))
	if err != nil {
		log.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	// Status writes are conditional, so retried activities stay safe even
	// with several activity workers on the queue.
	w := worker.New(c, shared.ActivityTaskQueue, worker.Options{
		WorkerStopTimeout: 30 * time.Second,
	})
	var notifier activities.Notifier = &activities.LogNotifier{Logger: log}
	if cfg.Notify.WebhookURL != "" {
		notifier = activities.NewWebhookNotifier(cfg.Notify.WebhookURL, log)
	}

	w.RegisterActivity(&activities.Activities{
		Store:    repo,
		Tracker:  tracker.New(repo, log, m),
		Notifier: notifier,
		Metrics:  m,
	})

	log.Info("Starting gate activity worker",
		zap.String("taskQueue", shared.ActivityTaskQueue),
		zap.String("metricsAddr", cfg.MetricsAddr),
	)
	if err := w.Run(stopCh(ctx)); err != nil {
		log.Fatal("Unable to start worker", zap.Error(err))
	}
}

// stopCh adapts ctx to the channel worker.Run waits on.
func stopCh(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
