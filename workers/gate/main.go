package main

import (
	stdlog "log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"storefront-access-gate/config"
	"storefront-access-gate/logger"
	"storefront-access-gate/shared"
	"storefront-access-gate/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Unable to load config: %v", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "gate-worker")
	if err != nil {
		stdlog.Fatalf("Unable to create logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	c, err := client.Dial(cfg.Temporal.ClientOptions(logger.NewTemporalLogger(log)))
	if err != nil {
		log.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	// Workflow tasks do no I/O, so the default concurrency limits are fine.
	// Sticky execution keeps session state cached between signals.
	w := worker.New(c, shared.GateWorkflowTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.GateSessionWorkflow)

	log.Info("Starting gate workflow worker",
		zap.String("taskQueue", shared.GateWorkflowTaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("Unable to start worker", zap.Error(err))
	}
}
