// Package transport carries normalized events from a page session to
// ingestion. Sends are one-way: the caller gets a Result it may ignore and
// never an error through any other path.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"errlens-agent/src/broker"
	"errlens-agent/src/contracts"
	"errlens-agent/src/logger"
)

// Result is the outcome of one send.
type Result struct {
	Delivered bool
	Err       error
}

// Sender delivers one event.
type Sender interface {
	Send(ctx context.Context, ev contracts.Event) Result
}

// FuncSender adapts a function to Sender.
type FuncSender func(ctx context.Context, ev contracts.Event) Result

func (f FuncSender) Send(ctx context.Context, ev contracts.Event) Result {
	return f(ctx, ev)
}

// envelope wraps ev for the wire. The sender identity comes from the host,
// never from the event.
func envelope(ev contracts.Event, from contracts.Sender) contracts.Envelope {
	ev.ID = ""
	ev.Status = ""
	ev.TabID = ""
	ev.TabOrigin = ""
	ev.Analysis = nil
	return contracts.Envelope{Kind: contracts.KindErrorCaptured, Payload: ev, Sender: from}
}

// BrokerSender publishes envelopes to the captured-events topic keyed by tab.
type BrokerSender struct {
	broker broker.Broker
	from   contracts.Sender
}

// NewBrokerSender creates a sender bound to one tab identity.
func NewBrokerSender(b broker.Broker, from contracts.Sender) *BrokerSender {
	return &BrokerSender{broker: b, from: from}
}

func (s *BrokerSender) Send(ctx context.Context, ev contracts.Event) Result {
	data, err := json.Marshal(envelope(ev, s.from))
	if err != nil {
		return Result{Err: fmt.Errorf("failed to marshal envelope: %w", err)}
	}
	if err := s.broker.Publish(ctx, contracts.TopicEventsCaptured, s.from.TabID, data); err != nil {
		return Result{Err: fmt.Errorf("failed to publish envelope: %w", err)}
	}
	return Result{Delivered: true}
}

// HTTPSender posts envelopes to a remote ingestion endpoint (POST /v1/events).
type HTTPSender struct {
	endpoint   string
	from       contracts.Sender
	httpClient *http.Client
}

// NewHTTPSender creates a sender for baseURL (e.g. "http://127.0.0.1:8787").
func NewHTTPSender(baseURL string, from contracts.Sender) *HTTPSender {
	return &HTTPSender{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/events",
		from:     from,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *HTTPSender) Send(ctx context.Context, ev contracts.Event) Result {
	data, err := json.Marshal(envelope(ev, s.from))
	if err != nil {
		return Result{Err: fmt.Errorf("failed to marshal envelope: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return Result{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Err: fmt.Errorf("ingestion returned status %d", resp.StatusCode)}
	}
	return Result{Delivered: true}
}

// Safe calls s.Send and converts a panic into a failed Result.
func Safe(ctx context.Context, s Sender, ev contracts.Event) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Err: fmt.Errorf("sender panicked: %v", rec)}
		}
	}()
	return s.Send(ctx, ev)
}

// Logged wraps a sender so failed results are debug-logged. The result is
// still returned to the caller.
func Logged(s Sender, log logger.Logger) Sender {
	return FuncSender(func(ctx context.Context, ev contracts.Event) Result {
		res := Safe(ctx, s, ev)
		if res.Err != nil {
			log.Debug("[Transport] Dropped %s event: %v", ev.Type, res.Err)
		}
		return res
	})
}
