package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ThrottleError marks a rate-limit rejection from the upstream provider.
// Throttling is the only error class worth retrying; everything else fails
// fast.
type ThrottleError struct {
	Cause error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("upstream throttling: %v", e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}

// TransientError records a retryable failure together with the attempt that
// observed it, so callers surfacing the error can report how far the retry
// policy got.
type TransientError struct {
	Attempt int
	Cause   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure on attempt %d: %v", e.Attempt, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// throttleMarkers are substrings that identify rate-limit rejections from
// providers that only expose string errors.
var throttleMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"too many requests",
	"quota exceeded",
	"overloaded",
	"resource exhausted",
}

// IsThrottle reports whether err is a throttling-class error, either an
// explicit ThrottleError or a provider error carrying a rate-limit marker.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}

	var throttle *ThrottleError
	if errors.As(err, &throttle) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify wraps throttling-class provider errors in ThrottleError so retry
// logic can dispatch on type instead of matching strings at every call site.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var throttle *ThrottleError
	if errors.As(err, &throttle) {
		return err
	}
	if IsThrottle(err) {
		return &ThrottleError{Cause: err}
	}
	return err
}
