// Package api serves the display queries, the page-side event intake and
// the live notification stream over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"errlens-agent/src/contracts"
	"errlens-agent/src/ingest"
	"errlens-agent/src/logger"
	"errlens-agent/src/store"
)

const maxEventBody = 1 << 20

// Subscriber is the notification source for the event stream.
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan contracts.Notification
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	svc *ingest.Service
	hub Subscriber
	log logger.Logger
	mux *http.ServeMux
}

// New creates an HTTP handler and registers all routes. hub may be nil, in
// which case the stream endpoint is not served.
func New(svc *ingest.Service, hub Subscriber, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	h := &Handler{svc: svc, hub: hub, log: log, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("GET /v1/errors", h.listErrors)
	h.mux.HandleFunc("DELETE /v1/errors", h.clearErrors)
	h.mux.HandleFunc("POST /v1/errors/{id}/requeue", h.requeueError)
	h.mux.HandleFunc("GET /v1/config", h.getConfig)
	h.mux.HandleFunc("GET /v1/domain-check", h.checkDomain)
	if hub != nil {
		h.mux.HandleFunc("GET /v1/stream", h.stream)
	}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.loggingMiddleware(h.mux)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("[API] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// POST /v1/events: envelope intake from remote page hosts.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var env contracts.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if env.Kind == "" {
		env.Kind = contracts.KindErrorCaptured
	}

	res, err := h.svc.Receive(r.Context(), env)
	if errors.Is(err, ingest.ErrUnknownKind) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":   true,
		"id":        res.ID,
		"duplicate": res.Duplicate,
	})
}

// GET /v1/errors: the log, most recent first.
func (h *Handler) listErrors(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Errors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []contracts.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"errors":  events,
	})
}

// DELETE /v1/errors: clear the log.
func (h *Handler) clearErrors(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// POST /v1/errors/{id}/requeue: send a failed event back for analysis.
func (h *Handler) requeueError(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.Requeue(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrNotFailed):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"event":   ev,
		})
	}
}

// GET /v1/config: display-safe configuration.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  h.svc.Config(),
	})
}

// GET /v1/domain-check?host=: whether capture is active on host.
func (h *Handler) checkDomain(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": h.svc.CheckDomain(host)})
}

// GET /v1/stream: notifications as server-sent events.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	notes := h.hub.Subscribe(r.Context())
	h.log.Debug("[API] Stream client connected")
	for n := range notes {
		data, err := json.Marshal(n)
		if err != nil {
			h.log.Error("[API] Failed to marshal %s notification: %v", n.Kind, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, data); err != nil {
			return
		}
		flusher.Flush()
	}
	h.log.Debug("[API] Stream client disconnected")
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
