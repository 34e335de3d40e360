package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned before any network call when no usable
	// key is configured.
	ErrMissingAPIKey = errors.New("analysis API key is not configured")

	// ErrInvalidAPIKey is returned when the service rejects the key (HTTP 401).
	ErrInvalidAPIKey = errors.New("analysis API key was rejected")

	// ErrEmptyResponse is returned when the response carries no text.
	ErrEmptyResponse = errors.New("analysis response contained no text")
)

// APIError is a non-2xx response other than 401.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis API request failed with status %d: %s", e.StatusCode, e.Body)
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += ". Hint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts client errors to the message recorded on a failed event.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrMissingAPIKey) {
		return &UserError{
			Message: "No API key configured",
			Hint:    "set api_key in the config file or export ERRLENS_API_KEY",
			Err:     err,
		}
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return &UserError{
			Message: "Invalid API key",
			Hint:    "check that the configured key is current and has access to the Messages API",
			Err:     err,
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return &UserError{
			Message: "Rate limited by the analysis service",
			Hint:    "requeue the event later or raise analysis_interval",
			Err:     err,
		}
	}

	return err
}
