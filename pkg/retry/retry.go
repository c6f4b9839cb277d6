package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"

	"github.com/movingops/jobreport-backend/pkg/config"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
)

// Policy is a bounded, fixed-delay retry policy for calls to external services.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// FromConfig builds a policy from the retry section of the config.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{Attempts: cfg.Attempts, Delay: cfg.Delay}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Delay < 0 {
		p.Delay = defaultDelay
	}
	return p
}

// Do runs fn until it succeeds, returns a permanent error, or the attempts are spent.
// Only errors classified by IsTransient are retried; the last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	p = p.normalized()
	backoff := goretry.WithMaxRetries(uint64(p.Attempts-1), goretry.NewConstant(nonZero(p.Delay)))
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// go-retry rejects a zero constant backoff, so tests with no delay use a single nanosecond.
func nonZero(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}

// IsTransient reports whether err looks like a rate limit, server fault or network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return code > 500
	}
}
