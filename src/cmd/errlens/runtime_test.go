package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"errlens-agent/src/broker"
	"errlens-agent/src/config"
	"errlens-agent/src/contracts"
	"errlens-agent/src/llm"
	"errlens-agent/src/logger"
	"errlens-agent/src/store"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store = "memory"
	st, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("openStore(memory) error: %v", err)
	}
	if _, ok := st.(*store.MemoryStore); !ok {
		t.Errorf("Expected MemoryStore, got %T", st)
	}

	cfg.Store = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "errlens.db")
	st, err = openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("openStore(sqlite) error: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.SQLiteStore); !ok {
		t.Errorf("Expected SQLiteStore, got %T", st)
	}

	cfg.Store = "redis"
	if _, err := openStore(ctx, cfg); err == nil {
		t.Error("Expected error for unknown store")
	}
}

func TestOpenBroker_InMemoryByDefault(t *testing.T) {
	brk, err := openBroker(config.Default(), logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("openBroker() error: %v", err)
	}
	defer brk.Close()
	if _, ok := brk.(*broker.InMemoryBroker); !ok {
		t.Errorf("Expected InMemoryBroker, got %T", brk)
	}
}

func TestRuntime_EndToEnd(t *testing.T) {
	t.Setenv("REDPANDA_BROKERS", "")
	t.Setenv("ERRLENS_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "errlens.yaml")
	ld, err := config.NewLoader(path, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	if _, err := ld.Update(func(c *config.Config) {
		c.Store = "memory"
		c.AnalysisInterval = 0
	}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := newRuntime(ctx, ld, logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("newRuntime() error: %v", err)
	}
	defer rt.Close()
	notes := rt.hub.Subscribe(ctx)
	if err := rt.start(ctx); err != nil {
		t.Fatalf("start() error: %v", err)
	}

	res, err := rt.svc.Receive(ctx, contracts.Envelope{
		Kind:    contracts.KindErrorCaptured,
		Payload: contracts.Event{Type: contracts.TypeConsoleError, Category: contracts.CategoryJavaScript, Message: "boom"},
		Sender:  contracts.Sender{TabID: "1"},
	})
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}

	// Without a key the analysis fails with guidance instead of calling out.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-notes:
			if n.Kind != contracts.NotifyAnalysisFailed {
				continue
			}
			if n.ID != res.ID {
				t.Errorf("Failed notification for %s, want %s", n.ID, res.ID)
			}
			ev, err := rt.svc.Get(ctx, res.ID)
			if err != nil || ev.Status != contracts.StatusFailed {
				t.Errorf("Expected failed event, got %+v (%v)", ev, err)
			}
			return
		case <-deadline:
			t.Fatal("Timeout waiting for analysis to fail")
		}
	}
}

func TestAnalyzer_UsesCurrentConfig(t *testing.T) {
	t.Setenv("ERRLENS_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	ld, err := config.NewLoader("", logger.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}
	_, err = analyzer(ld).Analyze(context.Background(), contracts.Event{Message: "x"})
	if err == nil || !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("Expected missing key error, got %v", err)
	}
}
