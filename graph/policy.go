package graph

import (
	"math/rand"
	"time"
)

// RetryPolicy controls how the executor retries a failed node attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth retrying. Nil means
	// IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries transient failures up to three attempts with
// exponential backoff starting at 500ms.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Retryable:   IsTransient,
	}
}

// shouldRetry reports whether another attempt is allowed after a failure
// on the given attempt number (0-based).
func (p *RetryPolicy) shouldRetry(attempt int, err error) bool {
	if p == nil {
		return false
	}
	if attempt+1 >= p.maxAttempts() {
		return false
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	return retryable(err)
}

func (p *RetryPolicy) maxAttempts() int {
	if p == nil || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// computeBackoff returns the delay before retrying attempt (0-based),
// exponential with full jitter on top of the base delay.
func (p *RetryPolicy) computeBackoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * (1 << uint(attempt))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}
