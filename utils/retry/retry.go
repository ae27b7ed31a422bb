package retry

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/FrenchMajesty/yuko/utils/logger"
)

// Config describes how many times and how fast to retry
type Config struct {
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Delay computes the wait before retry number attempt (0-based) using exponential backoff
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	multiple := c.BackoffMultiple
	if multiple < 1 {
		multiple = 1
	}

	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(attempt)))
	if c.MaxDelay > 0 && (delay > c.MaxDelay || delay < 0) {
		delay = c.MaxDelay
	}
	return delay
}

// IsRetryableStatus reports whether an HTTP status is worth another attempt. 429 is left
// out on purpose: rate limits carry their own wait and are handled by the caller.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return status > 500 && status < 600
}

// Options configures Execute
type Options struct {
	Config Config
	// ErrorChecker reports whether err should trigger another attempt. Nil retries everything.
	ErrorChecker func(err error) bool
	// Name prefixes log lines
	Name   string
	Logger logger.Logger
}

// Execute runs fn until it succeeds, returns a non-retryable error, the retries run out or
// ctx is done. The last error is returned.
func Execute(ctx context.Context, opts Options, fn func(attempt int) error) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.Delay(attempt - 1)
			log.Printf("%s: retry attempt %d/%d after %v: %v", opts.Name, attempt+1, opts.Config.MaxRetries+1, delay, lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w (last error: %v)", opts.Name, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if opts.ErrorChecker != nil && !opts.ErrorChecker(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
