// Package mcp exposes the captured error log to coding agents as MCP tools.
package mcp

// ErrorsResponse is the get_errors tool response.
type ErrorsResponse struct {
	Total    int            `json:"total"`
	Returned int            `json:"returned"`
	ByStatus map[string]int `json:"by_status"`
	Errors   []ErrorSummary `json:"errors"`
}

// ErrorSummary is a compact, token-friendly view of one event.
type ErrorSummary struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Category  string   `json:"category"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Location  string   `json:"location,omitempty"`
	Page      string   `json:"page,omitempty"`
	Timestamp string   `json:"timestamp"`
	Stack     []string `json:"stack,omitempty"`

	// Set once analysis has completed.
	Severity    string `json:"severity,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Fix         string `json:"fix,omitempty"`

	// Set when analysis failed.
	Error string `json:"error,omitempty"`
}

// Filter narrows a get_errors call.
type Filter struct {
	Status     string
	Category   string
	Limit      int
	BySeverity bool
}
