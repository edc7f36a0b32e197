package api

import (
	"net/http"
	"strconv"
)

// APIError is the decoded form of an ErrorResponse, plus the HTTP status.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Reason    string
	Message   string
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Code != "":
		return e.Code + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return "api error: " + strconv.Itoa(e.Status)
	default:
		return "api error"
	}
}

// HasReason reports whether the server tagged the error with any of reasons.
func (e *APIError) HasReason(reasons ...string) bool {
	if e == nil || e.Reason == "" {
		return false
	}
	for _, r := range reasons {
		if e.Reason == r {
			return true
		}
	}
	return false
}

// Retryable reports whether repeating the same request may succeed.
// A 502 partial failure already changed the record and is not retryable.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusConflict:
		return true
	}
	return false
}
