package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// MalformedRequestError reports a request that could not be normalized.
type MalformedRequestError struct {
	Reason string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed request: %s: %v", e.Reason, e.Err)
	}
	return "malformed request: " + e.Reason
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// InvocationError wraps a failure raised by the handler.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError reports an invocation that ran past its budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("invocation exceeded its %s budget", e.Budget)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// SerializationError reports a result that could not be rendered.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("render result: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StatusFor maps an error to the HTTP status sent to the caller.
func StatusFor(err error) int {
	var malformed *MalformedRequestError
	var timeout *TimeoutError
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResult converts err into the result sent to the caller. Internal detail is
// only exposed for malformed requests, where the reason is the caller's own input.
func ErrorResult(err error) Result {
	status := StatusFor(err)

	body := map[string]any{"error": "internal error"}
	var malformed *MalformedRequestError
	switch {
	case errors.As(err, &malformed):
		body = map[string]any{"error": "malformed request", "message": malformed.Reason}
	case status == http.StatusGatewayTimeout:
		body = map[string]any{"error": "request timed out"}
	}

	return JSON(status, body)
}
