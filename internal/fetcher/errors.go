package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrDisallowed = errors.New("disallowed by robots.txt")
	ErrNotHTML    = errors.New("not an html document")
	ErrTooLarge   = errors.New("document too large")
)

// FetchError is a failed render of one locator. Retryable failures are
// transient (timeouts, connection errors, 5xx and 429 responses).
type FetchError struct {
	Locator    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Locator, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func transportError(locator string, err error) *FetchError {
	retryable := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) {
		retryable = true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		retryable = true
	}
	if errors.Is(err, context.Canceled) {
		retryable = false
	}
	return &FetchError{Locator: locator, Retryable: retryable, Err: err}
}

func statusError(locator string, code int) *FetchError {
	retryable := code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	return &FetchError{
		Locator:    locator,
		StatusCode: code,
		Retryable:  retryable,
		Err:        fmt.Errorf("unexpected status %s", http.StatusText(code)),
	}
}
