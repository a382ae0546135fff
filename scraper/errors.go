package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/aluiziolira/go-scrape-launches/parser"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates a non-2xx response that is not a rate limit.
type ErrHTTPStatus struct {
	StatusCode int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http_status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrRateLimited indicates the target rate-limited the request (HTTP 429 or 403).
type ErrRateLimited struct {
	StatusCode int
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate_limited: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrExhausted is returned once every attempt has failed.
type ErrExhausted struct {
	Attempts int
	Err      error
}

func (e ErrExhausted) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gave up after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e ErrExhausted) Unwrap() error {
	return e.Err
}

func isRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusForbidden
}

// classifyStatus maps a response status onto the error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case isRateLimitStatus(code):
		return ErrRateLimited{StatusCode: code}
	default:
		return ErrHTTPStatus{StatusCode: code}
	}
}

// classifyTransportError wraps an error from the network round trip.
// Anything that did not come from the wire is returned as is.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}

// retryable reports whether err belongs to the recoverable taxonomy.
func retryable(err error) bool {
	var (
		timeout ErrTimeout
		conn    ErrConnection
		status  ErrHTTPStatus
		limited ErrRateLimited
	)
	switch {
	case errors.As(err, &limited),
		errors.As(err, &timeout),
		errors.As(err, &conn),
		errors.As(err, &status),
		errors.Is(err, parser.ErrNoBlocksFound),
		errors.Is(err, parser.ErrNoRecordsExtracted):
		return true
	}
	return false
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var exhausted ErrExhausted
	if errors.As(err, &exhausted) {
		return "exhausted"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	if errors.Is(err, parser.ErrNoBlocksFound) {
		return "no_blocks"
	}
	if errors.Is(err, parser.ErrNoRecordsExtracted) {
		return "no_records"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}
