package flowengine

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx answer from the engine.
type Error struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId"`
	Body       string `json:"body"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("flowengine error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("flowengine error (status %d): %s", e.StatusCode, e.Message)
}

func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsNotFound reports whether err is a 404 from the engine, e.g. an expired run.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func IsInvalidFlow(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}
