package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"errlens-agent/src/broker"
	"errlens-agent/src/contracts"
	"errlens-agent/src/logger"
)

// ConsumerGroup is the broker group the ingestion agent joins.
const ConsumerGroup = "errlens-ingest"

// Agent feeds envelopes from the broker into a Service.
type Agent struct {
	broker  broker.Broker
	service *Service
	logger  logger.Logger
}

// NewAgent creates a new ingest agent.
func NewAgent(brk broker.Broker, svc *Service, log logger.Logger) *Agent {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Agent{
		broker:  brk,
		service: svc,
		logger:  log,
	}
}

// Run starts the agent's main loop.
// It subscribes to errlens.events.captured and ingests each envelope in
// arrival order.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[IngestAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicEventsCaptured, ConsumerGroup)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicEventsCaptured, err)
	}

	a.logger.Info("[IngestAgent] Listening for events on '%s' topic...", contracts.TopicEventsCaptured)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[IngestAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processMessage(ctx, msg); err != nil {
				a.logger.Error("[IngestAgent] Error processing message: %v", err)
			}

		case <-ctx.Done():
			a.logger.Info("[IngestAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

func (a *Agent) processMessage(ctx context.Context, msg broker.Message) error {
	var env contracts.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	res, err := a.service.Receive(ctx, env)
	if err != nil {
		return err
	}
	if res.Duplicate {
		a.logger.Debug("[IngestAgent] Skipped duplicate %s (key %s)", res.ID, msg.Key)
	}
	return nil
}
