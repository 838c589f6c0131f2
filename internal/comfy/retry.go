package comfy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a failed call to the worker is repeated.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   300 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 300 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay * 16
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// do runs fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done.
func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	max := p.normalized().MaxAttempts
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return fn()
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		log.Printf("comfy: %s failed (attempt %d/%d), retrying in %s: %v", op, attempt, max, wait, err)
	})
}

// StatusError is returned when the worker answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: worker returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Temporary reports whether repeating the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// DecodeError wraps a worker payload that could not be understood.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// classify marks errors that a retry cannot fix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		return backoff.Permanent(err)
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return backoff.Permanent(err)
	}
	return err
}
