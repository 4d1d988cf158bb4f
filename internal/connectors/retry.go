// Package connectors holds the upstream integrations that feed discovery and cost data.
package connectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds retries of a single upstream call.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry tries an upstream call three times.
var DefaultRetry = RetryPolicy{
	MaxTries:        3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     8 * time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = DefaultRetry.MaxTries
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultRetry.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// Retry runs op with exponential backoff. Errors wrapped with Permanent stop immediately.
func Retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxTries),
	)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// CheckStatus turns a failed response into a StatusError, permanent unless retryable.
func CheckStatus(service string, code int, body string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Service: service, StatusCode: code, Body: body}
	if err.Retryable() {
		return err
	}
	return Permanent(err)
}
