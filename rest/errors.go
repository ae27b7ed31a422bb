package rest

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrRateLimitExceeded is matched by *RateLimitError
	ErrRateLimitExceeded = errors.New("rate limit retries exhausted")
	// ErrServer is matched by *ServerError
	ErrServer = errors.New("server error")
	// ErrNetwork is matched by *NetworkError
	ErrNetwork = errors.New("network error")
	// ErrStopped is returned for requests submitted to, or still queued in, a stopped manager
	ErrStopped = errors.New("rest manager stopped")
)

// RequestError is a 4xx the remote service rejected outright. It is never retried.
type RequestError struct {
	Route   string
	Status  int
	Code    int
	Message string
	Body    []byte
}

func newRequestError(route Route, status int, body []byte) *RequestError {
	parsed := gjson.ParseBytes(body)
	return &RequestError{
		Route:   route.String(),
		Status:  status,
		Code:    int(parsed.Get("code").Int()),
		Message: parsed.Get("message").String(),
		Body:    body,
	}
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request failed with status %d", e.Route, e.Status)
	}
	return fmt.Sprintf("%s: request failed with status %d: %s (code %d)", e.Route, e.Status, e.Message, e.Code)
}

// RateLimitError is returned once a request keeps hitting 429 past its retry budget
type RateLimitError struct {
	Route      string
	Hits       int
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	scope := "bucket"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("%s: %s rate limited %d times, last retry_after %v: %v", e.Route, scope, e.Hits, e.RetryAfter, ErrRateLimitExceeded)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }

// ServerError is returned after a 5xx persisted through every retry
type ServerError struct {
	Route    string
	Status   int
	Attempts int
	Body     []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: status %d after %d attempts: %v", e.Route, e.Status, e.Attempts, ErrServer)
}

func (e *ServerError) Unwrap() error { return ErrServer }

// NetworkError is returned after the transport kept failing through every retry
type NetworkError struct {
	Route    string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Route, ErrNetwork, e.Attempts, e.Err)
}

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }
