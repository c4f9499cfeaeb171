package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TransientError indicates a retryable provider failure: timeout, rate
// limit, or overloaded upstream.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient failure (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a TransientError with a default 5s backoff hint.
func NewTransientError(provider string, err error) *TransientError {
	return &TransientError{Err: err, RetryAfter: 5 * time.Second, Provider: provider}
}

// NewRateLimitError creates a TransientError for HTTP 429. If retryAfterSecs
// is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *TransientError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &TransientError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// PermanentError indicates a non-retryable provider failure: bad
// credentials, malformed configuration, or a rejected request shape.
type PermanentError struct {
	Err      error
	Provider string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s permanent failure: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a PermanentError.
func NewPermanentError(provider string, err error) *PermanentError {
	return &PermanentError{Err: err, Provider: provider}
}

// AsTransient unwraps err to a TransientError when one is in the chain.
func AsTransient(err error) (*TransientError, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTransient reports whether err may succeed on retry. Context deadline
// expiry counts as transient: a timed-out call is not fatal for the run.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsPermanent reports whether err should abort the whole run.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}
