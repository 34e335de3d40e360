package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"errlens-agent/src/contracts"
)

var sampleEvent = contracts.Event{
	Type:      contracts.TypeUncaughtException,
	Message:   "TypeError: Cannot read properties of undefined (reading 'id')",
	Filename:  "https://app.example.com/main.js",
	Lineno:    12,
	Colno:     7,
	Stack:     "TypeError: ...\n    at render (https://app.example.com/main.js:12:7)",
	OriginURL: "https://app.example.com/orders",
}

func TestClient_Analyze(t *testing.T) {
	var got messageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Errorf("Unexpected api key header %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != APIVersion {
			t.Errorf("Unexpected version header %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"severity\":\"high\"}"}]}`))
	}))
	defer server.Close()

	c := NewClient("sk-ant-test", "test-model", 256, server.URL)
	text, err := c.Analyze(context.Background(), sampleEvent)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if text != `{"severity":"high"}` {
		t.Errorf("Unexpected text %q", text)
	}
	if got.Model != "test-model" || got.MaxTokens != 256 || len(got.Messages) != 1 {
		t.Errorf("Unexpected request %+v", got)
	}
	if !strings.Contains(got.Messages[0].Content, "main.js:12:7") {
		t.Errorf("Prompt should carry the location, got %q", got.Messages[0].Content)
	}
}

func TestClient_MissingKeySkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, key := range []string{"", "   ", "your-api-key-here", "<API_KEY>", "changeme"} {
		c := NewClient(key, "", 0, server.URL)
		_, err := c.Analyze(context.Background(), sampleEvent)
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("key %q: expected ErrMissingAPIKey, got %v", key, err)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("Expected no network calls, got %d", calls)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error"}}`))
	}))
	defer server.Close()

	_, err := NewClient("sk-ant-revoked", "", 0, server.URL).Analyze(context.Background(), sampleEvent)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("Expected ErrInvalidAPIKey, got %v", err)
	}
	var userErr *UserError
	if !errors.As(err, &userErr) || userErr.Message != "Invalid API key" {
		t.Errorf("Expected a user-facing error, got %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantUser bool
	}{
		{"server error", http.StatusInternalServerError, false},
		{"overloaded", 529, false},
		{"rate limited", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("try later"))
			}))
			defer server.Close()

			_, err := NewClient("sk-ant-test", "", 0, server.URL).Analyze(context.Background(), sampleEvent)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Body != "try later" {
				t.Errorf("Unexpected APIError %+v", apiErr)
			}
			var userErr *UserError
			if errors.As(err, &userErr) != tt.wantUser {
				t.Errorf("UserError wrapping = %v, want %v", !tt.wantUser, tt.wantUser)
			}
		})
	}
}

func TestClient_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	_, err := NewClient("sk-ant-test", "", 0, server.URL).Analyze(context.Background(), sampleEvent)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	ev := sampleEvent
	ev.Stack = strings.Repeat("x", maxPromptStack+100)
	prompt := BuildPrompt(ev)

	for _, want := range []string{"uncaught_exception", "Cannot read properties", "https://app.example.com/orders", "severity"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, strings.Repeat("x", maxPromptStack+1)) {
		t.Error("Stack should be truncated")
	}
}
