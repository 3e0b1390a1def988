package repomanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransportError classifies a clone/fetch failure the way spec.md §7 asks:
// credential rejection is never retried automatically, everything else
// triggers the one-shot serial retry.
type TransportError struct {
	URL        string
	StatusHint string // "401", "403", "404", "5xx", "" when unknown
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v (url: %s)", e.StatusHint, e.Err, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the one-shot serial retry should be attempted
// for this error (spec.md §4.2, §7): 5xx and unclassified errors are
// retryable, 401/403 credential rejections are not.
func (e *TransportError) Retryable() bool {
	switch e.StatusHint {
	case "401", "403":
		return false
	default:
		return true
	}
}

func classifyTransportError(url string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	hint := ""
	switch {
	case strings.Contains(msg, "401"):
		hint = "401"
	case strings.Contains(msg, "403"):
		hint = "403"
	case strings.Contains(msg, "404"):
		hint = "404"
	case strings.Contains(msg, "could not resolve host"), strings.Contains(msg, "timed out"):
		hint = "5xx"
	}
	return &TransportError{URL: url, StatusHint: hint, Err: err}
}

// ConfigError is a fatal configuration-class error (spec.md §7): it is
// never retried and always aborts the URL it names.
type ConfigError struct {
	URL string
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("%v (url: %s)", e.Err, e.URL) }
func (e *ConfigError) Unwrap() error { return e.Err }

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
