package main

import (
	"context"
	"errors"
	"fmt"

	"errlens-agent/src/analyze"
	"errlens-agent/src/broker"
	"errlens-agent/src/config"
	"errlens-agent/src/contracts"
	"errlens-agent/src/ingest"
	"errlens-agent/src/llm"
	"errlens-agent/src/logger"
	"errlens-agent/src/notify"
	"errlens-agent/src/store"
)

// runtime is the assembled background side: broker, durable log,
// ingestion service, notification hub and analysis queue.
type runtime struct {
	loader *config.Loader
	log    logger.Logger
	broker broker.Broker
	store  store.Store
	hub    *notify.Hub
	svc    *ingest.Service
	queue  *analyze.Queue
	agent  *ingest.Agent
}

// openBroker selects Redpanda when brokers are configured, otherwise the
// in-process broker.
func openBroker(cfg *config.Config, log logger.Logger) (broker.Broker, error) {
	if len(cfg.RedpandaBrokers) == 0 {
		return broker.NewInMemoryBroker(), nil
	}
	brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}
	return brk, nil
}

// openStore opens the configured durable log.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// analyzer calls the model with the configuration current at call time, so
// a key saved while the server runs is used for the next event.
func analyzer(loader *config.Loader) analyze.Analyzer {
	return analyze.AnalyzerFunc(func(ctx context.Context, ev contracts.Event) (string, error) {
		return llm.FromConfig(loader.Config()).Analyze(ctx, ev)
	})
}

func newRuntime(ctx context.Context, loader *config.Loader, log logger.Logger) (*runtime, error) {
	cfg := loader.Config()

	brk, err := openBroker(cfg, log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		brk.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	hub := notify.NewHub(brk, log)
	svc := ingest.NewService(ingest.Options{
		Store:    st,
		Notifier: hub,
		Limit:    cfg.MaxEvents,
		Config:   loader.Config,
		Logger:   log,
	})
	queue := analyze.NewQueue(analyzer(loader), svc,
		analyze.WithMinInterval(cfg.AnalysisInterval),
		analyze.WithLogger(log))
	svc.Attach(queue)

	return &runtime{
		loader: loader,
		log:    log,
		broker: brk,
		store:  st,
		hub:    hub,
		svc:    svc,
		queue:  queue,
		agent:  ingest.NewAgent(brk, svc, log),
	}, nil
}

// start restores the persisted log and launches the queue worker and the
// ingest agent. Both stop when ctx is done.
func (r *runtime) start(ctx context.Context) error {
	n, err := r.svc.Restore(ctx)
	if err != nil {
		return err
	}
	r.log.Info("[Runtime] Loaded %d event(s) from %s store", n, r.loader.Config().Store)

	go func() {
		if err := r.queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("[Runtime] Analysis queue stopped: %v", err)
		}
	}()
	go func() {
		if err := r.agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("[Runtime] Ingest agent stopped: %v", err)
		}
	}()
	return nil
}

func (r *runtime) Close() {
	r.hub.Close()
	if err := r.store.Close(); err != nil {
		r.log.Warn("[Runtime] Failed to close store: %v", err)
	}
	if err := r.broker.Close(); err != nil {
		r.log.Warn("[Runtime] Failed to close broker: %v", err)
	}
}
