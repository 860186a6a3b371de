// Package store defines the submission store contract shared by the remote
// PostgREST-backed client and the in-memory stub used when the environment
// is not configured. All implementations translate transport failures into
// the closed error taxonomy declared here; callers never see raw transport
// errors.
package store

import (
	"context"
	"time"

	"github.com/example/waitlist-service/internal/models"
)

// Client is the submission store contract consumed by the form controller
// and the HTTP handlers.
type Client interface {
	// Submit inserts a sanitized form as a new submission record. The
	// store enforces email uniqueness; a conflict is returned as
	// ErrDuplicateEmail and is never retried.
	Submit(ctx context.Context, data models.FormData, source string) (*models.SubmissionRecord, error)

	// CheckEmailExists reports whether a submission with the given email
	// already exists. The lookup is case-insensitive.
	CheckEmailExists(ctx context.Context, email string) (bool, error)

	// Count returns the number of submissions matching the filters. A nil
	// filter counts everything.
	Count(ctx context.Context, filters *models.Filters) (int, error)

	// Stats aggregates the counters behind the live submission widgets.
	Stats(ctx context.Context) (*models.Stats, error)
}

// Default retry parameters for the remote client.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialDelay      = time.Second
	DefaultBackoffMultiplier = 2.0
)

// RetryConfig governs the remote client's retry lifecycle. Only transient
// failures are retried; terminal errors from the taxonomy short-circuit.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry parameters used when none are
// configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		InitialDelay:      DefaultInitialDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// Delay returns the backoff before the given retry: InitialDelay scaled by
// BackoffMultiplier^(attempt-1). Attempt numbering starts at 1, so the
// delay after the first failed attempt is exactly InitialDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.BackoffMultiplier
	}
	return time.Duration(delay)
}

// Normalize returns the config with defaults applied to unset fields.
func (c RetryConfig) Normalize() RetryConfig {
	out := c
	if out.MaxAttempts < 1 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	if out.InitialDelay <= 0 {
		out.InitialDelay = DefaultInitialDelay
	}
	if out.BackoffMultiplier <= 0 {
		out.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return out
}
