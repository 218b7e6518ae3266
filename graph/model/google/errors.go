package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/researchflow-go/graph"
)

// classifyErr sorts provider failures into retryable and permanent.
// Rate limits, timeouts, and server errors are worth retrying; bad
// credentials and exhausted quota are not.
func classifyErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return graph.Transient(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "too many requests"):
		return graph.Transient(fmt.Errorf("%s rate limited: %w", provider, err))
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"),
		strings.Contains(msg, "service unavailable"):
		return graph.Transient(fmt.Errorf("%s server error: %w", provider, err))
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"),
		strings.Contains(msg, "connection"):
		return graph.Transient(fmt.Errorf("%s network error: %w", provider, err))
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "api_key"),
		strings.Contains(msg, "api key"):
		return fmt.Errorf("%s authentication failed: %w", provider, err)
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"):
		return fmt.Errorf("%s quota exceeded: %w", provider, err)
	default:
		return fmt.Errorf("%s api error: %w", provider, err)
	}
}
