// Package contracts defines message types exchanged between the page and the background agents.
package contracts

// TopicNames used on the message broker.
const (
	// TopicEventsCaptured carries Envelopes from page sessions to ingestion.
	TopicEventsCaptured = "errlens.events.captured"

	// TopicNotifications carries Notifications from ingestion to displays.
	TopicNotifications = "errlens.notifications"
)

// KindErrorCaptured is the only envelope kind a page session sends.
const KindErrorCaptured = "error_captured"

// Sender identifies the tab an envelope came from. It is stamped by the
// transport owned by the page host, never by the page session itself.
type Sender struct {
	TabID  string `json:"tabId"`
	Origin string `json:"origin"`
}

// Envelope is the page -> ingestion message.
// Published to: errlens.events.captured
// Key: {tabId}
type Envelope struct {
	Kind    string `json:"kind"`
	Payload Event  `json:"payload"`
	Sender  Sender `json:"sender"`
}

// NotificationKind names a push message sent to displays.
type NotificationKind string

const (
	NotifyNewEvent          NotificationKind = "new_event"
	NotifyStatusUpdated     NotificationKind = "status_updated"
	NotifyAnalysisCompleted NotificationKind = "analysis_completed"
	NotifyAnalysisFailed    NotificationKind = "analysis_failed"
	NotifyErrorsCleared     NotificationKind = "errors_cleared"
)

// Notification is an ingestion -> display push message.
// Event is set for new_event and analysis_completed; ID/Status for
// status_updated; ID/Error for analysis_failed.
// Published to: errlens.notifications
type Notification struct {
	Kind   NotificationKind `json:"kind"`
	Event  *Event           `json:"event,omitempty"`
	ID     string           `json:"id,omitempty"`
	Status Status           `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// ConfigView is the display-safe projection of the configuration.
type ConfigView struct {
	HasAPIKey bool     `json:"hasApiKey"`
	Domains   []string `json:"domains"`
	Enabled   bool     `json:"enabled"`
}
