// Package contracts defines the data structures shared by the page-side capture
// pipeline and the background ingestion and analysis agents.
package contracts

import "time"

// EventType is the fine-grained classification of a captured fault.
type EventType string

const (
	TypeConsoleError       EventType = "console_error"
	TypeConsoleWarning     EventType = "console_warning"
	TypeUncaughtException  EventType = "uncaught_exception"
	TypeUnhandledRejection EventType = "unhandled_rejection"
	TypeNetworkError       EventType = "network_error"
	TypeNetworkSlow        EventType = "network_slow"
	TypeNetworkTimeout     EventType = "network_timeout"
	TypeResourceError      EventType = "resource_error"
	TypeDOMError           EventType = "dom_error"
	TypeCSPViolation       EventType = "csp_violation"
	TypeLongTask           EventType = "long_task"
	TypeLayoutShift        EventType = "layout_shift"
	TypeDeprecation        EventType = "deprecation"
	TypeIntervention       EventType = "intervention"
)

// Category is the coarse grouping used for filtering. It is orthogonal to EventType.
type Category string

const (
	CategoryJavaScript   Category = "javascript"
	CategoryNetwork      Category = "network"
	CategoryDOM          Category = "dom"
	CategoryPerformance  Category = "performance"
	CategoryCSP          Category = "csp"
	CategoryDeprecation  Category = "deprecation"
	CategoryIntervention Category = "intervention"
)

// Status is the analysis lifecycle of an ingested event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further automatic transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity is the model-assigned impact of a fault.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Viewport is the page's visible area at capture time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Analysis holds the model's explanation on success, or Error on failure.
type Analysis struct {
	Severity    Severity `json:"severity,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	Fix         string   `json:"fix,omitempty"`
	Prevention  string   `json:"prevention,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Event is the normalized fault record.
//
// Capture-context fields (OriginURL, Timestamp, UserAgent, Viewport) are set by
// the normalizer. ID, TabID, TabOrigin and Status are set by ingestion only.
type Event struct {
	ID        string         `json:"id,omitempty"`
	Type      EventType      `json:"type"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Stack     string         `json:"stack,omitempty"`
	Filename  string         `json:"filename,omitempty"`
	Lineno    int            `json:"lineno,omitempty"`
	Colno     int            `json:"colno,omitempty"`
	Source    string         `json:"source,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	OriginURL string         `json:"originUrl"`
	Timestamp time.Time      `json:"timestamp"`
	UserAgent string         `json:"userAgent,omitempty"`
	Viewport  Viewport       `json:"viewport"`
	TabID     string         `json:"tabId,omitempty"`
	TabOrigin string         `json:"tabOrigin,omitempty"`
	Status    Status         `json:"status,omitempty"`
	Analysis  *Analysis      `json:"analysis,omitempty"`
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	if e.Metadata != nil {
		md := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	if e.Analysis != nil {
		a := *e.Analysis
		e.Analysis = &a
	}
	return e
}
