package plan

import (
	"fmt"
	"strings"
)

// TransportError wraps a failure that happened before any HTTP status was
// obtained: unreachable host, timeout, broken connection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("router transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestError is a non-2xx response from the routing service. Code and
// Message are populated when the body carried a structured error, otherwise
// Body holds the raw response text.
type RequestError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *RequestError) Error() string {
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("router request failed: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("router request failed: status=%d body=%q", e.Status, strings.TrimSpace(e.Body))
}

// ErrorCode returns the structured error code, falling back to a synthetic
// HTTP_<status> key.
func (e *RequestError) ErrorCode() string {
	if c := strings.TrimSpace(e.Code); c != "" {
		return c
	}
	return fmt.Sprintf("HTTP_%d", e.Status)
}

// ValidationError is a 2xx router response missing mandatory headers.
// The response is rejected before a Plan is built.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("router response missing mandatory headers: %s", strings.Join(e.Missing, ", "))
}
