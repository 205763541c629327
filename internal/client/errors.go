package client

import (
	"errors"
	"fmt"
)

// TransportError covers network failures and bodies that are not the expected JSON.
type TransportError struct {
	StatusCode int
	RequestID  string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transport error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a failure reported by the analysis service itself.
type ServiceError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *ServiceError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("service error: status=%d request_id=%s message=%s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("service error: status=%d message=%s", e.StatusCode, e.Message)
}

// Message returns the text to show a user for err, preferring the
// service-provided message over wrapping context.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
