package gentlify

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrRateLimited is a sentinel for failures caused by rate pressure.
	// The submitter reports these to the throttle and retries them
	// with exponential backoff.
	ErrRateLimited = &RateLimitError{}

	// ErrTransient is a sentinel for short-lived failures that are not
	// evidence of rate pressure (ex. a 5xx from the provider).
	// The submitter retries these but never reports them to the throttle.
	ErrTransient = &TransientError{}

	// ErrPermanent is a sentinel for failures that retrying cannot fix
	// (ex. a malformed request or an authentication failure).
	ErrPermanent = &PermanentError{}

	// ErrRetriesExhausted is a sentinel for the terminal error returned
	// when a call kept failing for the maximum number of attempts.
	ErrRetriesExhausted = &RetriesExhausted{}
)

// RateLimitError marks a call failure as caused by rate pressure.
//
// RetryAfter optionally carries a provider-supplied hint on how long
// to wait before the next attempt; when present it overrides the
// submitter's computed backoff delay for that attempt.
type RateLimitError struct {
	Cause      error
	RetryAfter time.Duration
}

// RateLimited wraps a provider error as a rate-limit failure.
func RateLimited(cause error) error {
	return &RateLimitError{
		Cause: cause,
	}
}

// RateLimitedWithRetryAfter wraps a provider error as a rate-limit
// failure carrying an explicit retry-after hint.
func RateLimitedWithRetryAfter(cause error, retryAfter time.Duration) error {
	return &RateLimitError{
		Cause:      cause,
		RetryAfter: retryAfter,
	}
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("RateLimitError: the call was rate limited, retry after %v ms (%v)", e.RetryAfter.Milliseconds(), e.Cause)
	}
	return fmt.Sprintf("RateLimitError: the call was rate limited (%v)", e.Cause)
}

func (e *RateLimitError) Is(tgt error) bool {
	_, ok := tgt.(*RateLimitError)
	return ok
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// TransientError marks a call failure as short-lived and retriable
// without being evidence of rate pressure.
type TransientError struct {
	Cause error
}

// Transient wraps a provider error as a transient failure.
func Transient(cause error) error {
	return &TransientError{
		Cause: cause,
	}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("TransientError: the call failed with a retriable error (%v)", e.Cause)
}

func (e *TransientError) Is(tgt error) bool {
	_, ok := tgt.(*TransientError)
	return ok
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// PermanentError marks a call failure as not retriable.
//
// Note that errors a request function returns without classifying
// are treated as permanent as well: retrying an unknown failure
// risks repeating non-idempotent work.
type PermanentError struct {
	Cause error
}

// Permanent wraps a provider error as a permanent failure.
func Permanent(cause error) error {
	return &PermanentError{
		Cause: cause,
	}
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("PermanentError: the call failed and will not be retried (%v)", e.Cause)
}

func (e *PermanentError) Is(tgt error) bool {
	_, ok := tgt.(*PermanentError)
	return ok
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// RetriesExhausted is returned when a call kept failing
// for the maximum number of attempts.
//
// Cause holds the failure observed on the last attempt.
type RetriesExhausted struct {
	AttemptsNumber int
	WaitedFor      time.Duration
	Cause          error
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf(
		"RetriesExhausted: call failed after %v attempts in %v ms (%v)",
		e.AttemptsNumber,
		e.WaitedFor.Milliseconds(),
		e.Cause,
	)
}

func (e *RetriesExhausted) Is(tgt error) bool {
	_, ok := tgt.(*RetriesExhausted)
	return ok
}

func (e *RetriesExhausted) Unwrap() error {
	return e.Cause
}

// matches hints like "try again in 20s" or "retry after 2.5 s"
var retryAfterPattern = regexp.MustCompile(`(?i)(?:try again in|retry.after)\s+(\d+(?:\.\d+)?)\s*s`)

// ParseRetryAfter tries to extract a retry-after hint from a provider
// error message. Returns false when the message carries no hint.
func ParseRetryAfter(message string) (time.Duration, bool) {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
