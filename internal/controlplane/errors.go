package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Problem is an RFC 7807 Problem Details body returned by the control plane.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// StatusError is returned for any non-2xx control plane response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Problem    *Problem
	Body       string
}

func (e *StatusError) Error() string {
	msg := e.Body
	if e.Problem != nil {
		msg = e.Problem.Title
		if e.Problem.Detail != "" {
			msg += ": " + e.Problem.Detail
		}
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("control plane: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsUnauthorized reports whether err is a 401 or 403 from the control plane,
// which usually means the API key was revoked or mistyped.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRetryable reports whether err is worth retrying on the next tick:
// server errors, rate limiting, timeouts and network failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
